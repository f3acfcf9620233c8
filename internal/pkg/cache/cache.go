package cache

import (
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("cache: key not found")

var client *redis.Client

// Initialize sets the redis client every Set uses. Sets created before Initialize are
// usable but always miss.
func Initialize(c *redis.Client) {
	client = c
}
