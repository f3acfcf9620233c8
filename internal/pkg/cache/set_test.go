package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockingValue(started chan<- string, release <-chan struct{}, year int) func(ctx context.Context) (*payload, error) {
	return func(ctx context.Context) (*payload, error) {
		started <- "started"
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &payload{Year: year}, nil
		}
	}
}

func TestSetMutexGetSetDistinctKeysRunConcurrently(t *testing.T) {
	s := NewSet[payload]("test")
	started := make(chan string, 2)
	release := make(chan struct{})

	var wg sync.WaitGroup
	for _, key := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			var dest payload
			_, err := s.MutexGetSet(context.Background(), key, &dest, blockingValue(started, release, 1), time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, 1, dest.Year)
		}(key)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			close(release)
			t.Fatal("misses of different keys were serialized")
		}
	}
	close(release)
	wg.Wait()
}

func TestSetMutexGetSetSharesSameKey(t *testing.T) {
	s := NewSet[payload]("test")

	var calls int32
	valueFunc := func(context.Context) (*payload, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return &payload{Year: 2024}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest payload
			_, err := s.MutexGetSet(context.Background(), "k", &dest, valueFunc, time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, 2024, dest.Year)
		}()
	}
	wg.Wait()

	assert.Less(t, atomic.LoadInt32(&calls), int32(8))
}

func TestSetMutexGetSetWaiterHonorsContext(t *testing.T) {
	s := NewSet[payload]("test")
	started := make(chan string, 2)
	release := make(chan struct{})
	defer close(release)

	go func() {
		var dest payload
		_, _ = s.MutexGetSet(context.Background(), "k", &dest, blockingValue(started, release, 1), time.Minute)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	begin := time.Now()
	var dest payload
	_, err := s.MutexGetSet(ctx, "k", &dest, blockingValue(started, release, 2), time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
}

func TestSetMutexGetSetOutlivesAbandonedLoader(t *testing.T) {
	s := NewSet[payload]("test")
	started := make(chan string, 2)
	release := make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		var dest payload
		_, err := s.MutexGetSet(leaderCtx, "k", &dest, blockingValue(started, release, 1), time.Minute)
		leaderDone <- err
	}()
	<-started

	waiterDone := make(chan payload, 1)
	go func() {
		var dest payload
		_, err := s.MutexGetSet(context.Background(), "k", &dest, blockingValue(started, release, 2), time.Minute)
		assert.NoError(t, err)
		waiterDone <- dest
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	<-started
	close(release)

	select {
	case dest := <-waiterDone:
		assert.Equal(t, 2, dest.Year)
	case <-time.After(time.Second):
		require.FailNow(t, "waiter did not recover from the abandoned load")
	}
}
