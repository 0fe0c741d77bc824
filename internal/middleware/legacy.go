package middleware

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// LegacyRedirect answers requests for retired paths with a redirect to
// their replacement before routing happens.
func LegacyRedirect(table *routing.Table, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := table.Legacy(r.URL.Path, r.Method)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			target := rule.Target
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}

			logger.Info("Redirecting legacy path",
				slog.String("from", r.URL.Path),
				slog.String("to", rule.Target),
				slog.Int("status", rule.Status))

			http.Redirect(w, r, target, rule.Status)
		})
	}
}
