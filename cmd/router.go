package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/proxy-router/config"
	"github.com/angeloszaimis/proxy-router/internal/metrics"
	"github.com/angeloszaimis/proxy-router/internal/middleware"
)

// setupRouter answers the configured local paths itself and sends every other
// request through legacy redirects and body capture to the route handler.
func setupRouter(a *app, gatherer prometheus.Gatherer) (http.Handler, error) {
	var breakers metrics.BreakerReporter
	if a.breakers != nil {
		breakers = a.breakers
	}

	local := map[string]http.Handler{
		config.HandlerHealth:  http.HandlerFunc(handleHealth),
		config.HandlerHealthz: a.handleHealthz(),
		config.HandlerReady:   a.handleReady(),
		config.HandlerRoutes:  a.handleRoutes(),
		config.HandlerMetrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		config.HandlerStatus:  a.stats.Handler(a.monitor, breakers),
	}

	for _, lp := range a.table.LocalPaths() {
		if _, ok := local[lp.Handler]; !ok {
			return nil, fmt.Errorf("static path %q: unknown handler %q", lp.Path, lp.Handler)
		}
	}

	proxy := middleware.Chain(a.routerHandler(),
		middleware.LegacyRedirect(a.table, a.log),
		middleware.BodyCapture(a.cfg.Proxy.MaxBodyBytes, a.log),
	)

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tag, ok := a.table.LocalHandler(r.URL.Path); ok {
			local[tag].ServeHTTP(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	})

	return middleware.Chain(root,
		middleware.RequestID(),
		middleware.AccessLog(a.log),
		middleware.Recovery(a.log),
	), nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := a.monitor.CheckAll(r.Context())

		status, code := "healthy", http.StatusOK
		for _, healthy := range results {
			if !healthy {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, code, map[string]any{
			"status":   status,
			"services": results,
		})
	}
}

func (a *app) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (a *app) handleRoutes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.table.Describe())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
