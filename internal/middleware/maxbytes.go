package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes caps login and stock forms, which are a few fields each.
const DefaultMaxBodyBytes = 64 << 10

// MaxBytes limits the request body size; oversized bodies fail to parse and
// the handler reports invalid input.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
