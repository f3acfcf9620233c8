package dlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExcludes(t *testing.T) {
	l := NewLocal()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "card:alice", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalIndependentNames(t *testing.T) {
	l := NewLocal()

	a, err := l.Lock(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer a()

	b, err := l.Lock(context.Background(), "b", time.Second)
	require.NoError(t, err)
	b()
}

func TestLocalContextCancel(t *testing.T) {
	l := NewLocal()

	release, err := l.Lock(context.Background(), "a", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	again, err := l.Lock(context.Background(), "a", time.Second)
	require.NoError(t, err)
	again()
}
