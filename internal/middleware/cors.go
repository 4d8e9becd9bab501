package middleware

import (
	"net/http"
	"strings"
)

// CORSAllowedMethods are the methods the JSON API answers.
var CORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}

// CORSAllowedHeaders are the request headers a browser client may send.
var CORSAllowedHeaders = []string{"Accept", "Authorization", "Content-Type"}

// CORS sets CORS headers for listed origins and answers preflight requests.
// With no origins it is a no-op.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(CORSAllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(CORSAllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
