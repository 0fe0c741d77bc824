package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// Registry maps logical service names to services. Names are
// case-insensitive. It is read-only after construction.
type Registry struct {
	services   map[string]*Service
	names      []string
	duplicates []string
}

// NewRegistry builds a service for each descriptor. Problems with the
// descriptors are reported by Validate, not here.
func NewRegistry(descriptors []ServiceDescriptor, pool PoolConfig, logger *slog.Logger) *Registry {
	r := &Registry{
		services: make(map[string]*Service, len(descriptors)),
	}

	for _, desc := range descriptors {
		desc.Name = strings.ToLower(desc.Name)
		if _, dup := r.services[desc.Name]; dup {
			r.duplicates = append(r.duplicates, desc.Name)
			continue
		}
		r.services[desc.Name] = newService(desc, pool, logger)
		r.names = append(r.names, desc.Name)
	}

	return r
}

// Get returns the named service.
func (r *Registry) Get(name string) (*Service, bool) {
	s, ok := r.services[strings.ToLower(name)]
	return s, ok
}

// BaseURL returns protocol://host:port of the named service.
func (r *Registry) BaseURL(name string) (string, bool) {
	s, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return s.desc.BaseURL(), true
}

// Names returns the service names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Services returns the services in declaration order.
func (r *Registry) Services() []*Service {
	out := make([]*Service, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.services[name])
	}
	return out
}

// Validate checks every descriptor and the version policy. An empty result
// means the registry is usable.
func (r *Registry) Validate(policy routing.VersionPolicy) []error {
	var errs []error

	if len(r.names) == 0 {
		errs = append(errs, errors.New("no services configured"))
	}
	for _, name := range r.duplicates {
		errs = append(errs, fmt.Errorf("service %q declared twice", name))
	}
	for _, name := range r.names {
		if err := r.services[name].desc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", name, err))
		}
	}

	return append(errs, policy.Validate()...)
}

// CloseIdleConnections drops pooled connections of every service.
func (r *Registry) CloseIdleConnections() {
	for _, s := range r.services {
		s.CloseIdleConnections()
	}
}
