package routing

import (
	"fmt"
	"net/url"
)

// ServiceLookup maps a logical service name to its base URL.
type ServiceLookup interface {
	BaseURL(name string) (string, bool)
}

// ResolvedRoute is the routing decision for one request.
type ResolvedRoute struct {
	Service       string
	TargetBaseURL string
	RewrittenPath string

	// RewrittenRawPath is the escaped form of RewrittenPath when the request
	// carried escapes that decoding loses, such as %2F. Empty otherwise.
	RewrittenRawPath string
	Params           map[string]string
	IsDynamic        bool

	// Version is the API version the request was resolved under.
	Version string
	Route   *Route
}

// Resolver picks the single route for a path and version.
type Resolver struct {
	table    *Table
	services ServiceLookup
}

// NewResolver creates a resolver over an immutable table.
func NewResolver(table *Table, services ServiceLookup) *Resolver {
	return &Resolver{
		table:    table,
		services: services,
	}
}

// Table returns the table the resolver reads.
func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve returns the route for path under version (the default version when
// empty). ok is false when nothing matches, which is not an error. A matched
// route whose target is not registered yields a non-nil route carrying the
// service name together with an *UnknownServiceError.
func (r *Resolver) Resolve(path, version string) (route *ResolvedRoute, ok bool, err error) {
	version = r.table.versions.Effective(version)
	path = Canonicalize(path)

	matched, params, found := r.match(path, version)
	if !found {
		return nil, false, nil
	}

	if matched.dynamic && matched.RequiresVersionValidation() && !r.table.versions.IsSupported(params["version"]) {
		return nil, false, nil
	}
	if v, has := params["version"]; has && matched.dynamic {
		version = v
	}

	resolved := &ResolvedRoute{
		Service:   matched.Target(),
		Params:    params,
		IsDynamic: matched.dynamic,
		Version:   version,
		Route:     matched,
	}

	rewritten, err := matched.rewrite(path, params)
	if err != nil {
		return resolved, true, fmt.Errorf("rewrite %s: %w", matched.Pattern(), err)
	}
	resolved.RewrittenPath = rewritten

	base, known := r.services.BaseURL(matched.Target())
	if !known {
		return resolved, true, &UnknownServiceError{Service: matched.Target(), Pattern: matched.Pattern()}
	}
	resolved.TargetBaseURL = base

	return resolved, true, nil
}

// ResolveURL resolves u.Path like Resolve and carries the request's
// escaping over to the rewritten path.
func (r *Resolver) ResolveURL(u *url.URL, version string) (*ResolvedRoute, bool, error) {
	route, ok, err := r.Resolve(u.Path, version)
	if !ok || route.RewrittenPath == "" {
		return route, ok, err
	}

	if escaped := u.EscapedPath(); escaped != u.Path {
		route.RewrittenRawPath = escapedRewrite(route, Canonicalize(escaped))
	}
	return route, ok, err
}

// escapedRewrite applies the route's rewrites to the escaped path. The result
// is kept only when it decodes to the rewritten path.
func escapedRewrite(route *ResolvedRoute, escaped string) string {
	params, ok := route.Route.pattern.Match(escaped)
	if !ok {
		return ""
	}
	raw, err := route.Route.rewrite(escaped, params)
	if err != nil {
		return ""
	}
	if decoded, err := url.PathUnescape(raw); err != nil || decoded != route.RewrittenPath {
		return ""
	}
	return raw
}

func (r *Resolver) match(path, version string) (*Route, map[string]string, bool) {
	for _, route := range r.table.static[version] {
		if params, ok := route.pattern.Match(path); ok {
			return route, params, true
		}
	}

	for _, route := range r.table.dynamic {
		if params, ok := route.pattern.Match(path); ok {
			return route, params, true
		}
	}

	return nil, nil, false
}
