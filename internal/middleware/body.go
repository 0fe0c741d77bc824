package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/proxy-router/internal/dispatch"
	"github.com/angeloszaimis/proxy-router/internal/reqctx"
)

// BodyCapture reads the raw body of payload requests into the request
// context so it can be replayed upstream unchanged. Bodies larger than
// maxBytes are rejected with 413.
func BodyCapture(maxBytes int64, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !carriesPayload(r) {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			_ = r.Body.Close()
			if err != nil {
				logger.Debug("Failed to read request body",
					slog.String("path", r.URL.Path),
					slog.Any("err", err))
				dispatch.WriteError(w, http.StatusBadRequest, "", reqctx.RequestID(r.Context()))
				return
			}
			if int64(len(raw)) > maxBytes {
				logger.Warn("Request body too large",
					slog.String("path", r.URL.Path),
					slog.Int64("limit", maxBytes))
				dispatch.WriteError(w, http.StatusRequestEntityTooLarge, "", reqctx.RequestID(r.Context()))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(raw))
			r.ContentLength = int64(len(raw))
			r = r.WithContext(reqctx.WithRawBody(r.Context(), raw))

			next.ServeHTTP(w, r)
		})
	}
}

func carriesPayload(r *http.Request) bool {
	if !dispatch.HasForwardableBody(r.Method, true) {
		return false
	}
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	return r.ContentLength != 0 || len(r.TransferEncoding) > 0
}
