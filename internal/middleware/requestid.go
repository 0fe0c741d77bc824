package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/proxy-router/internal/reqctx"
)

// RequestIDHeader is the header name for request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID keeps an incoming X-Request-ID or generates one, and makes it
// visible to the context, the upstream request and the response. As the
// outermost middleware it also stamps the request start time.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				r.Header.Set(RequestIDHeader, requestID)
			}

			ctx := reqctx.WithRequestID(r.Context(), requestID)
			if reqctx.StartTime(ctx).IsZero() {
				ctx = reqctx.WithStartTime(ctx, time.Now())
			}
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r)
		})
	}
}
