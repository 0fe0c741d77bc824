package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/proxy-router/internal/reqctx"
)

// AccessLog logs every request once it has been answered. The duration is
// measured from the start time an outer middleware put on the context, or
// from now when there is none.
func AccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := reqctx.StartTime(r.Context())
			if start.IsZero() {
				start = time.Now()
				r = r.WithContext(reqctx.WithStartTime(r.Context(), start))
			}
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				logger.Info("Handled request",
					slog.String("from", extractClientIP(r)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("proto", r.Proto),
					slog.String("host", r.Host),
					slog.String("user_agent", r.UserAgent()),
					slog.Int("status", rec.statusCode),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", reqctx.RequestID(r.Context())))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
