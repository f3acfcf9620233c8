// Package dlock provides named mutual exclusion, distributed over redis or local to the process.
package dlock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNotAcquired = errors.New("dlock: lock not acquired")

// Release unlocks a held lock. It is safe to call more than once.
type Release func()

type Locker interface {
	Lock(ctx context.Context, name string, expiry time.Duration) (Release, error)
}

// Redsync locks through redis, so every replica of the service observes the same lock.
type Redsync struct {
	rs *redsync.Redsync
}

func NewRedsync(rs *redsync.Redsync) *Redsync {
	return &Redsync{rs: rs}
}

func (l *Redsync) Lock(ctx context.Context, name string, expiry time.Duration) (Release, error) {
	mutex := l.rs.NewMutex("mutex:"+name,
		redsync.WithExpiry(expiry),
		redsync.WithTries(32),
		redsync.WithRetryDelay(250*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrNotAcquired, "%s: %v", name, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := mutex.Unlock(); err != nil {
				log.Warn().Err(err).Str("evt.name", "dlock.unlock.failed").Str("name", name).Msg("failed to release lock")
			}
		})
	}, nil
}

// Local locks within the process only. expiry is ignored.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) Lock(ctx context.Context, name string, _ time.Duration) (Release, error) {
	for {
		l.mu.Lock()
		held, ok := l.locks[name]
		if !ok {
			ch := make(chan struct{})
			l.locks[name] = ch
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, name)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
