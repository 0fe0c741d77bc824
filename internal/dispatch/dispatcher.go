package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/circuitbreaker"
	"github.com/angeloszaimis/proxy-router/internal/metrics"
	"github.com/angeloszaimis/proxy-router/internal/reqctx"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

const (
	HeaderProxyTarget  = "X-Proxy-Target"
	HeaderProxyService = "X-Proxy-Service"
	HeaderAPIVersion   = "X-API-Version"
	HeaderRequestID    = "X-Request-ID"
)

// Dispatcher forwards resolved requests and accounts for them.
type Dispatcher struct {
	logger   *slog.Logger
	registry *backend.Registry
	stats    *metrics.Stats
	exporter *metrics.Exporter
	breakers *circuitbreaker.Registry
	buffered Forwarder
	agent    Forwarder
}

// NewDispatcher wires the forwarders. exporter and breakers may be nil.
func NewDispatcher(
	logger *slog.Logger,
	registry *backend.Registry,
	stats *metrics.Stats,
	exporter *metrics.Exporter,
	breakers *circuitbreaker.Registry,
) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		registry: registry,
		stats:    stats,
		exporter: exporter,
		breakers: breakers,
		buffered: NewBufferedForwarder(),
		agent:    NewAgentForwarder(),
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId,omitempty"`
}

// Dispatch forwards r to the route's service and writes the upstream
// response, or a JSON error when the upstream could not be used. Nothing is
// written when the client has gone away.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, route *routing.ResolvedRoute) {
	requestID := reqctx.RequestID(r.Context())
	start := time.Now()
	d.stats.Begin()

	obs := make(http.Header, 4)
	obs.Set(HeaderProxyTarget, route.TargetBaseURL)
	obs.Set(HeaderProxyService, route.Service)
	obs.Set(HeaderAPIVersion, route.Version)
	if requestID != "" {
		obs.Set(HeaderRequestID, requestID)
	}
	for key, values := range obs {
		w.Header()[key] = values
	}

	svc, ok := d.registry.Get(route.Service)
	if !ok {
		d.fail(w, r, route, start, &Error{Kind: KindUnknownService, Service: route.Service, Cause: routing.ErrUnknownService})
		return
	}

	body, hasBody := reqctx.RawBody(r.Context())
	fwd := d.agent
	if HasForwardableBody(r.Method, hasBody) {
		fwd = d.buffered
	}

	rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK, overrides: obs}
	recorded := false

	defer func() {
		if p := recover(); p != nil {
			if !recorded && r.Context().Err() == nil {
				d.stats.Complete(route.Service, time.Since(start), false)
				d.exporter.ObserveError(route.Service, "aborted")
			}
			panic(p)
		}
	}()

	ctx, cancel := context.WithTimeout(r.Context(), svc.Timeout())
	defer cancel()
	out := r.WithContext(ctx)

	d.logger.Debug("Forwarding request",
		slog.String("service", route.Service),
		slog.String("target", route.TargetBaseURL+route.RewrittenPath),
		slog.String("strategy", fwd.Name()),
		slog.Int("body_bytes", len(body)),
		slog.String("request_id", requestID))

	var fwdErr error
	call := func() error {
		fwdErr = fwd.Forward(rec, out, route, svc)
		if fwdErr != nil && r.Context().Err() != nil {
			return nil
		}
		return fwdErr
	}
	if d.breakers != nil {
		if err := d.breakers.Execute(svc.Name(), call); circuitbreaker.IsOpen(err) {
			fwdErr = err
		}
	} else {
		_ = call()
	}

	duration := time.Since(start)

	if fwdErr == nil {
		recorded = true
		d.stats.Complete(route.Service, duration, true)
		d.exporter.ObserveRequest(route.Service, fwd.Name(), rec.statusCode, duration)
		d.logger.Info("Forwarded request",
			slog.String("service", route.Service),
			slog.String("method", r.Method),
			slog.String("path", route.RewrittenPath),
			slog.Int("status", rec.statusCode),
			slog.Duration("duration", duration),
			slog.String("request_id", requestID))
		return
	}

	dispatchErr := &Error{
		Kind:    classify(fwdErr, r.Context(), ctx),
		Service: route.Service,
		Cause:   fwdErr,
	}

	if dispatchErr.Kind == KindClientAbort {
		recorded = true
		d.logger.Debug("Client went away",
			slog.String("service", route.Service),
			slog.String("request_id", requestID))
		return
	}

	if rec.wroteHeader {
		recorded = true
		d.stats.Complete(route.Service, duration, false)
		d.exporter.ObserveError(route.Service, string(dispatchErr.Kind))
		d.logger.Warn("Upstream response cut short",
			slog.String("service", route.Service),
			slog.String("request_id", requestID),
			slog.Any("err", fwdErr))
		panic(http.ErrAbortHandler)
	}

	recorded = true
	d.fail(w, r, route, start, dispatchErr)
}

func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, route *routing.ResolvedRoute, start time.Time, err *Error) {
	requestID := reqctx.RequestID(r.Context())

	d.stats.Complete(route.Service, time.Since(start), false)
	d.exporter.ObserveError(route.Service, string(err.Kind))

	level := slog.LevelWarn
	if err.Kind == KindUnknownService {
		level = slog.LevelError
	}
	d.logger.Log(r.Context(), level, "Dispatch failed",
		slog.String("service", route.Service),
		slog.String("kind", string(err.Kind)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestID),
		slog.Any("err", err.Cause))

	WriteError(w, err.Status(), route.Service, requestID)
}

// WriteError writes the JSON error body used for every router-generated
// failure.
func WriteError(w http.ResponseWriter, status int, service, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     http.StatusText(status),
		Service:   service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	})
}
