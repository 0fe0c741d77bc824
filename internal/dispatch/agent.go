package dispatch

import (
	"net/http"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// AgentForwarder sends the request through the service's pooled reverse
// proxy.
type AgentForwarder struct{}

func NewAgentForwarder() *AgentForwarder {
	return &AgentForwarder{}
}

func (f *AgentForwarder) Name() string {
	return "agent"
}

func (f *AgentForwarder) Forward(w http.ResponseWriter, r *http.Request, route *routing.ResolvedRoute, svc *backend.Service) error {
	out := r.Clone(r.Context())
	out.URL.Path = route.RewrittenPath
	out.URL.RawPath = route.RewrittenRawPath

	return svc.ServeProxy(w, out)
}
