package auth

import (
	"context"
	"fmt"
	"time"

	"account-service/internal/cache"
)

const (
	denylistPrefix = "denylist:"
	deniedValue    = "true"
)

// Denylist records revoked token ids until the token would have expired anyway.
type Denylist struct {
	cache *cache.Cache
}

func NewDenylist(c *cache.Cache) *Denylist {
	return &Denylist{cache: c}
}

// IsDenied is true only for an entry holding the denial flag. A missing key
// means not denied. Store errors are returned, never treated as "allowed".
func (d *Denylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	value, found, err := d.cache.Get(ctx, denylistPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}
	return found && value == deniedValue, nil
}

// Deny stores jti for ttl rounded up to a whole second, and for at least one second.
func (d *Denylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	if err := d.cache.Set(ctx, denylistPrefix+jti, deniedValue, denyTTL(ttl)); err != nil {
		return fmt.Errorf("deny token: %w", err)
	}
	return nil
}

func denyTTL(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	return ttl
}
