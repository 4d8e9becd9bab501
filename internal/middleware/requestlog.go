package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// responseWriter captures status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// RequestLog logs one line per request. Server errors are logged at error
// level, client errors at warn. Place it after chi's RequestID.
func RequestLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)

			level := zapcore.InfoLevel
			switch {
			case wrap.status >= 500:
				level = zapcore.ErrorLevel
			case wrap.status >= 400:
				level = zapcore.WarnLevel
			}
			logger.Log(level, "request",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("role", string(RoleFrom(r.Context()))),
				zap.Int("status", wrap.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int("size", wrap.size))
		})
	}
}
