package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// Limiter is a per-client token bucket keyed by IP.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*limiterEntry
}

func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{rps: rate.Limit(rps), burst: burst, visitors: map[string]*limiterEntry{}}
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	le, ok := l.visitors[key]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = le
	}
	le.last = time.Now()
	return le.limiter.Allow()
}

// Sweep drops entries idle for longer than idle.
func (l *Limiter) Sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.visitors {
		if time.Since(v.last) > idle {
			delete(l.visitors, k)
		}
	}
}

// clientIP keys on the connection address only. Forwarding headers are
// client controlled; a trusted proxy setup rewrites RemoteAddr upstream.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies l to every request.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
