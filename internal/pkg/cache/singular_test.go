package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Year  int
	Items []int
}

func TestSingularMutexGetSetComputesOnce(t *testing.T) {
	c := NewSingular[payload]("test")

	var calls int32
	valueFunc := func() (*payload, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return &payload{Year: 2024, Items: []int{1, 2}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest payload
			assert.NoError(t, c.MutexGetSet(&dest, valueFunc, time.Minute))
			assert.Equal(t, 2024, dest.Year)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSingularDelete(t *testing.T) {
	c := NewSingular[payload]("test")
	assert.NoError(t, c.Set(&payload{Year: 1}, time.Minute))
	assert.NoError(t, c.Delete())

	var dest payload
	assert.ErrorIs(t, c.Get(&dest), ErrNotFound)
}

func TestSingularValueFuncError(t *testing.T) {
	c := NewSingular[payload]("test")
	boom := errors.New("boom")

	var dest payload
	err := c.MutexGetSet(&dest, func() (*payload, error) { return nil, boom }, time.Minute)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Get(&dest), ErrNotFound)
}

func TestSetWithoutClientMisses(t *testing.T) {
	s := NewSet[payload]("test")
	var dest payload
	calculated, err := s.MutexGetSet(context.Background(), "k", &dest, func(context.Context) (*payload, error) { return &payload{Year: 7}, nil }, time.Minute)
	assert.NoError(t, err)
	assert.True(t, calculated)
	assert.Equal(t, 7, dest.Year)
}
