package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64  // sustained rate per key
	Burst             int      // bucket size
	TrustedProxies    []string // proxies whose X-Forwarded-For is trusted
}

// KeyedLimiter keeps one token bucket per key (client IP, session id).
// Idle buckets are evicted by a janitor goroutine that stops with ctx.
type KeyedLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter allowing rps per key with the given burst.
func NewKeyedLimiter(ctx context.Context, rps float64, burst int) *KeyedLimiter {
	k := &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    3 * time.Minute,
		buckets: make(map[string]*bucket),
	}
	go k.janitor(ctx)
	return k
}

// Allow reports whether one event for key may happen now.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.get(key).Allow()
}

// RetryAfter estimates when key gets its next token. It reads the bucket
// without taking from it.
func (k *KeyedLimiter) RetryAfter(key string) time.Duration {
	lim := k.get(key)
	tokens := lim.TokensAt(time.Now())
	if tokens >= 1 {
		return 0
	}
	if lim.Limit() <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - tokens) / float64(lim.Limit()) * float64(time.Second))
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *KeyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (k *KeyedLimiter) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			k.evict(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (k *KeyedLimiter) evict(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.idle {
			delete(k.buckets, key)
		}
	}
}

// RateLimit limits requests per client IP. A zero rate disables it.
func RateLimit(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := NewKeyedLimiter(ctx, cfg.RequestsPerSecond, cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, cfg.TrustedProxies)
			if !limiter.Allow(ip) {
				secs := int(math.Ceil(limiter.RetryAfter(ip).Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
