package auth

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"account-service/internal/cache"
	"account-service/internal/httpx"
	"account-service/internal/observability"
)

const loginRatePrefix = "ratelimit:login:"

// LoginRateLimiter is a fixed window counter per client IP kept in Redis,
// so the limit holds across every instance of the service.
type LoginRateLimiter struct {
	cache   *cache.Cache
	maxHits int
	window  time.Duration
}

func NewLoginRateLimiter(c *cache.Cache, maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{cache: c, maxHits: maxHits, window: window}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter, err := l.allow(r.Context(), observability.ClientIP(r))
		if err != nil {
			httpx.WriteFailure(w, r, http.StatusServiceUnavailable, "login_rate_limit_failed", err, "login is temporarily unavailable")
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			httpx.WriteError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	hits, remaining, err := l.cache.Incr(ctx, loginRatePrefix+ip, l.window)
	if err != nil {
		return false, 0, err
	}
	if hits > int64(l.maxHits) {
		if remaining < time.Second {
			remaining = time.Second
		}
		return false, remaining, nil
	}
	return true, 0, nil
}
