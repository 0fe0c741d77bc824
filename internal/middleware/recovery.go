package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/angeloszaimis/proxy-router/internal/dispatch"
	"github.com/angeloszaimis/proxy-router/internal/reqctx"
)

// Recovery turns a panic into a 500 JSON response. http.ErrAbortHandler is
// passed on so the server can drop a half-written response.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("Panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("err", err),
					slog.String("stack", string(debug.Stack())))

				dispatch.WriteError(w, http.StatusInternalServerError, "", reqctx.RequestID(r.Context()))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
