// Package cache is a thin string key-value client over Redis.
//
// Denylist entries, verification codes and rate-limit counters all live
// here. Nothing is cached in process: every read goes to Redis so that all
// instances observe writes immediately.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("cache unavailable")

type Cache struct {
	db redis.UniversalClient
}

func New(db redis.UniversalClient) *Cache {
	return &Cache{db: db}
}

// Connect parses a redis:// DSN and returns a client with the given timeout
// applied to dialing, reads and writes.
func Connect(dsn string, timeout time.Duration) (*redis.Client, error) {
	options, err := redis.ParseURL(strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout > 0 {
		options.DialTimeout = timeout
		options.ReadTimeout = timeout
		options.WriteTimeout = timeout
	}
	return redis.NewClient(options), nil
}

// Get returns the value at key. found is false when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = c.db.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// Set writes value at key. A ttl of zero keeps the key until deleted.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.db.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes keys and returns how many existed.
func (c *Cache) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := c.db.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return removed, nil
}

// Expire sets a ttl on an existing key. It reports false when key is absent.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.db.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: expire %s: %v", ErrUnavailable, key, err)
	}
	return ok, nil
}

// Incr increments the counter at key, setting ttl when the counter is new.
// It returns the counter value and the remaining window.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	count, err := c.db.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: incr %s: %v", ErrUnavailable, key, err)
	}

	remaining, err := c.db.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ttl %s: %v", ErrUnavailable, key, err)
	}
	// A counter without expiry (fresh, or one whose EXPIRE was lost) gets the window now.
	if remaining < 0 {
		if err := c.db.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: expire %s: %v", ErrUnavailable, key, err)
		}
		remaining = ttl
	}

	return count, remaining, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.db.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}
