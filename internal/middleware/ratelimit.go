package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter keeps a token bucket per client IP.
type IPRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*visitor
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewIPRateLimiter creates a per-IP limiter. Buckets unused for longer than
// ten minutes are dropped on the next lookup.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*visitor),
		limit: limit,
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
	}
}

// Allow reports whether ip may make another request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, v := range l.ips {
		if now.Sub(v.seen) > l.idle {
			delete(l.ips, k)
		}
	}
	v, ok := l.ips[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.ips[ip] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

// ClientIP returns the client address from X-Forwarded-For, X-Real-IP or
// RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware answers 429 once the client IP exceeds its budget.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many login attempts"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRateLimiter allows 10 login attempts per minute per IP, burst 5.
func LoginRateLimiter() *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(10.0/60.0), 5)
}
