// Package ratelimit is a simple token bucket keyed by client IP.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type bucket struct {
	ts     time.Time // window start
	tokens int       // remaining tokens
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	per     time.Duration
}

// New creates a limiter allowing max requests per window.
func New(max int, per time.Duration) *Limiter {
	return &Limiter{buckets: map[string]*bucket{}, max: max, per: per}
}

// Allow consumes a token for the given remote address, starting a fresh
// window when the previous one has lapsed.
func (l *Limiter) Allow(remoteAddr string) bool {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[ip]
	if b == nil || time.Since(b.ts) > l.per {
		b = &bucket{ts: time.Now(), tokens: l.max}
		l.buckets[ip] = b
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Middleware enforces the limit before calling the next handler.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
