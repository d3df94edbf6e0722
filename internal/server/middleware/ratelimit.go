package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool is a keyed set of token-bucket limiters with background cleanup
// of stale entries.
type limiterPool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	rps     float64
	burst   int
}

type poolEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLimiterPool(ctx context.Context, rps float64, burst int) *limiterPool {
	p := &limiterPool{
		entries: make(map[string]*poolEntry),
		rps:     rps,
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.evictStale(time.Now().Add(-30 * time.Minute))
			case <-ctx.Done():
				return
			}
		}
	}()

	return p
}

func (p *limiterPool) evictStale(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, e := range p.entries {
		if e.lastAccess.Before(cutoff) {
			delete(p.entries, key)
		}
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.entries[key] = e
	}
	e.lastAccess = time.Now()

	return e.limiter.Allow()
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// (auth routes, the payment callback). Uses chi's RealIP middleware value via
// r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool(ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(r.RemoteAddr) {
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-tenant rate limiting so one noisy tenant cannot starve
// the others. Requests without a tenant in context pass through; the admin
// routes carry their own protections.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool(ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := TenantIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !pool.allow(tenantID.String()) {
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
