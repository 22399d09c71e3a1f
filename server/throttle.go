package server

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginThrottle limits login requests per source address. It complements the per-identifier
// lockout, which a single address can spread across many identifiers.
type loginThrottle struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*throttleEntry
	mu       sync.Mutex
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLoginThrottle(limit rate.Limit, burst int) *loginThrottle {
	if burst <= 0 {
		burst = 1
	}
	return &loginThrottle{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*throttleEntry),
	}
}

func (t *loginThrottle) allow(addr string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.limiters[addr]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[addr] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// prune forgets addresses idle since before cutoff.
func (t *loginThrottle) prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for addr, e := range t.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(t.limiters, addr)
		}
	}
}

func (s *Server) ThrottleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.throttle.allow(clientAddress(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
