package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/proxy-router/internal/dispatch"
	"github.com/angeloszaimis/proxy-router/internal/reqctx"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// Dispatcher forwards a resolved request.
type Dispatcher interface {
	Dispatch(w http.ResponseWriter, r *http.Request, route *routing.ResolvedRoute)
}

// RouterHandler resolves each request against the route table and hands it
// to the dispatcher.
type RouterHandler struct {
	logger     *slog.Logger
	resolver   *routing.Resolver
	dispatcher Dispatcher
	next       http.Handler
}

// NewRouterHandler creates the handler. Unrouted requests go to next, or
// get a JSON 404 when next is nil.
func NewRouterHandler(logger *slog.Logger, resolver *routing.Resolver, dispatcher Dispatcher, next http.Handler) *RouterHandler {
	if next == nil {
		next = http.HandlerFunc(NotFound)
	}
	return &RouterHandler{
		logger:     logger,
		resolver:   resolver,
		dispatcher: dispatcher,
		next:       next,
	}
}

func (h *RouterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	policy := h.resolver.Table().Versions()
	version := routing.VersionFromPath(r.URL.Path)

	route, ok, err := h.resolver.ResolveURL(r.URL, version)
	if !ok {
		h.logger.Debug("No route matched",
			slog.String("path", r.URL.Path),
			slog.String("version", policy.Effective(version)))
		h.next.ServeHTTP(w, r)
		return
	}

	// Unknown services are reported by the dispatcher so they are counted.
	if err != nil && !errors.Is(err, routing.ErrUnknownService) {
		h.logger.Error("Path rewrite failed",
			slog.String("service", route.Service),
			slog.Any("err", err))
		dispatch.WriteError(w, http.StatusBadGateway, route.Service, reqctx.RequestID(r.Context()))
		return
	}

	if route.Route != nil && !route.Route.AllowsMethod(r.Method) {
		w.Header().Set("Allow", strings.Join(route.Route.Methods(), ", "))
		dispatch.WriteError(w, http.StatusMethodNotAllowed, route.Service, reqctx.RequestID(r.Context()))
		return
	}

	if policy.IsDeprecated(route.Version) {
		w.Header().Set("Deprecation", "true")
	}

	h.dispatcher.Dispatch(w, r, route)
}

// NotFound answers an unrouted request with a JSON 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     http.StatusText(http.StatusNotFound),
		"path":      r.URL.Path,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": reqctx.RequestID(r.Context()),
	})
}
