package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

func NewSet[T any](prefix string) *Set[T] {
	return &Set[T]{
		prefix: prefix + ":",
	}
}

type Set[T any] struct {
	// g collapses concurrent MutexGetSet misses per key
	g singleflight.Group

	prefix string
}

func (c *Set[T]) key(key string) string {
	return c.prefix + key
}

func (c *Set[T]) Get(key string, dest *T) error {
	if client == nil {
		return ErrNotFound
	}
	key = c.key(key)
	resp, err := client.Get(context.Background(), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		log.Error().Err(err).Str("key", key).Msg("failed to get value from redis")
		return err
	}
	err = msgpack.Unmarshal(resp, dest)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to unmarshal value from msgpack from redis")
		return err
	}
	return nil
}

func (c *Set[T]) Set(key string, value *T, expire time.Duration) error {
	if client == nil {
		return nil
	}
	key = c.key(key)
	if l := log.Trace(); l.Enabled() {
		l.Str("key", key).Msg("setting value to redis")
	}
	b, err := msgpack.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to marshal value with msgpack")
		return err
	}
	err = client.Set(context.Background(), key, b, expire).Err()
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to set value to redis")
		return err
	}
	return nil
}

// MutexGetSet gets value from cache and writes to dest, or if the key does not exists, it executes valueFunc
// to get cache value. Concurrent misses of the same key share one valueFunc call; misses of different keys
// run independently. A caller whose ctx ends stops waiting and returns ctx.Err().
// The first return value means whether the value is got from cache or not. True means calculated; False means getting from redis.
func (c *Set[T]) MutexGetSet(ctx context.Context, key string, dest *T, valueFunc func(ctx context.Context) (*T, error), expire time.Duration) (bool, error) {
	err := c.Get(key, dest)
	if err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Str("key", key).Msg("failed to get value from redis in MutexGetSet")
		return false, err
	}
	// onwards, cache key does not exist

	return true, c.sharedGetSet(ctx, key, dest, valueFunc, expire)
}

func (c *Set[T]) sharedGetSet(ctx context.Context, key string, dest *T, valueFunc func(ctx context.Context) (*T, error), expire time.Duration) error {
	for {
		ch := c.g.DoChan(key, func() (any, error) {
			return c.load(ctx, key, valueFunc, expire)
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// the loading caller gave up; load again under ours
				if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
					continue
				}
				return res.Err
			}
			*dest = *res.Val.(*T)
			return nil
		}
	}
}

func (c *Set[T]) load(ctx context.Context, key string, valueFunc func(ctx context.Context) (*T, error), expire time.Duration) (*T, error) {
	var cached T
	err := c.Get(key, &cached)
	if err == nil {
		return &cached, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Str("key", key).Msg("failed to get value from redis in MutexGetSet inner check")
		return nil, err
	}

	value, err := valueFunc(ctx)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to get value from valueFunc() in MutexGetSet")
		return nil, err
	}

	if err := c.Set(key, value, expire); err != nil {
		// the value is still good for this caller
		log.Warn().Err(err).Str("key", key).Msg("failed to set value to redis in MutexGetSet")
	}

	return value, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Set[T]) Delete(key string) error {
	if client == nil {
		return nil
	}
	key = c.key(key)
	if err := client.Del(context.Background(), key).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete value from redis")
		return err
	}

	return nil
}

func (c *Set[T]) Flush() error {
	if client == nil {
		return nil
	}
	script := redis.NewScript(`local keys = redis.call('keys', ARGV[1])
		for i=1,#keys,5000 do
			redis.call('del', unpack(keys, i, math.min(i+4999, #keys)))
		end
	return keys`)
	err := script.Eval(context.Background(), client, []string{}, []string{c.prefix + "*"}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Error().Err(err).Str("prefix", c.prefix).Msg("failed to clear cache")
		return err
	}
	return nil
}
