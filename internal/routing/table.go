package routing

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// DefaultLegacyStatus preserves the method and body of the redirected request.
const DefaultLegacyStatus = http.StatusTemporaryRedirect

// RouteDefinition is one configured route.
type RouteDefinition struct {
	Pattern                   string
	Target                    string
	Methods                   []string
	Rewrites                  []RewriteRule
	RequiresVersionValidation bool
}

// LegacyRule redirects an old path to its replacement before routing.
type LegacyRule struct {
	Path    string   `json:"path"`
	Target  string   `json:"redirect_target"`
	Methods []string `json:"methods,omitempty"`
	Status  int      `json:"status"`
}

// LocalPath is a path answered by a local handler, identified by tag.
type LocalPath struct {
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// TableConfig is the raw material for a Table.
type TableConfig struct {
	Versions VersionPolicy
	Static   map[string][]RouteDefinition
	Dynamic  []RouteDefinition
	Legacy   []LegacyRule
	Local    []LocalPath
}

// Route is a compiled RouteDefinition.
type Route struct {
	def      RouteDefinition
	pattern  *Pattern
	rewrites []*compiledRewrite
	dynamic  bool
	methods  map[string]bool
}

// Target returns the name of the service the route forwards to.
func (r *Route) Target() string {
	return r.def.Target
}

// Pattern returns the configured template.
func (r *Route) Pattern() string {
	return r.def.Pattern
}

// IsDynamic reports whether the route lives in the dynamic table.
func (r *Route) IsDynamic() bool {
	return r.dynamic
}

// RequiresVersionValidation reports whether the ":version" parameter must be
// a supported version for the route to match.
func (r *Route) RequiresVersionValidation() bool {
	return r.def.RequiresVersionValidation
}

// Methods returns the allowed methods; empty means any.
func (r *Route) Methods() []string {
	return append([]string(nil), r.def.Methods...)
}

// AllowsMethod reports whether the route accepts the method.
func (r *Route) AllowsMethod(method string) bool {
	if len(r.methods) == 0 {
		return true
	}
	return r.methods[strings.ToUpper(method)]
}

func (r *Route) rewrite(path string, params map[string]string) (string, error) {
	out := path
	for _, rw := range r.rewrites {
		var err error
		if out, err = rw.apply(out, params); err != nil {
			return "", err
		}
	}
	return out, nil
}

// Table is the immutable route table built at boot. It is safe for
// concurrent use without locking.
type Table struct {
	versions  VersionPolicy
	static    map[string][]*Route
	dynamic   []*Route
	legacy    map[string]LegacyRule
	legacyOrd []string
	local     map[string]string
	localOrd  []LocalPath
}

// NewTable compiles cfg. When services is non-nil every route target must be
// known to it. All problems are reported together.
func NewTable(cfg TableConfig, services ServiceLookup) (*Table, error) {
	t := &Table{
		versions: cfg.Versions,
		static:   make(map[string][]*Route, len(cfg.Static)),
		legacy:   make(map[string]LegacyRule, len(cfg.Legacy)),
		local:    make(map[string]string, len(cfg.Local)),
	}

	errs := cfg.Versions.Validate()

	for version, defs := range cfg.Static {
		if !cfg.Versions.IsSupported(version) {
			errs = append(errs, fmt.Errorf("%w: static routes declared for unsupported version %q", ErrInvalidVersions, version))
		}
		for _, def := range defs {
			route, err := compileRoute(def, false)
			if err != nil {
				errs = append(errs, fmt.Errorf("routes.%s: %w", version, err))
				continue
			}
			t.static[version] = append(t.static[version], route)
		}
	}

	for _, def := range cfg.Dynamic {
		route, err := compileRoute(def, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("dynamic: %w", err))
			continue
		}
		t.dynamic = append(t.dynamic, route)
	}

	for _, rule := range cfg.Legacy {
		if !strings.HasPrefix(rule.Path, "/") || rule.Target == "" {
			errs = append(errs, fmt.Errorf("legacy: rule %q needs an absolute path and a redirect target", rule.Path))
			continue
		}
		if rule.Status == 0 {
			rule.Status = DefaultLegacyStatus
		}
		rule.Methods = upperAll(rule.Methods)
		key := Canonicalize(rule.Path)
		if _, dup := t.legacy[key]; !dup {
			t.legacyOrd = append(t.legacyOrd, key)
		}
		t.legacy[key] = rule
	}

	for _, lp := range cfg.Local {
		path := Canonicalize(lp.Path)
		if _, dup := t.local[path]; dup {
			errs = append(errs, fmt.Errorf("static: path %q declared twice", lp.Path))
			continue
		}
		t.local[path] = lp.Handler
		t.localOrd = append(t.localOrd, LocalPath{Path: path, Handler: lp.Handler})
	}

	if services != nil {
		for _, route := range t.allRoutes() {
			if _, ok := services.BaseURL(route.Target()); !ok {
				errs = append(errs, &UnknownServiceError{Service: route.Target(), Pattern: route.Pattern()})
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func compileRoute(def RouteDefinition, dynamic bool) (*Route, error) {
	if def.Target == "" {
		return nil, fmt.Errorf("%w: %q has no target service", ErrInvalidPattern, def.Pattern)
	}

	pattern, err := CompilePattern(def.Pattern)
	if err != nil {
		return nil, err
	}
	if !dynamic && pattern.HasParams() {
		return nil, fmt.Errorf("%w: static route %q may not declare named parameters", ErrInvalidPattern, def.Pattern)
	}
	if def.RequiresVersionValidation && !pattern.HasParam("version") {
		return nil, fmt.Errorf("%w: %q requires version validation but has no :version parameter", ErrInvalidPattern, def.Pattern)
	}

	route := &Route{
		def:     def,
		pattern: pattern,
		dynamic: dynamic,
		methods: make(map[string]bool, len(def.Methods)),
	}
	route.def.Methods = upperAll(def.Methods)
	for _, m := range route.def.Methods {
		route.methods[m] = true
	}

	for _, rule := range def.Rewrites {
		cr, err := compileRewrite(rule, pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", def.Pattern, err)
		}
		route.rewrites = append(route.rewrites, cr)
	}

	return route, nil
}

// Versions returns the version policy.
func (t *Table) Versions() VersionPolicy {
	return t.versions
}

// Legacy returns the redirect rule for path, if one applies to method.
func (t *Table) Legacy(path, method string) (LegacyRule, bool) {
	rule, ok := t.legacy[Canonicalize(path)]
	if !ok {
		return LegacyRule{}, false
	}
	if len(rule.Methods) > 0 && !slices.Contains(rule.Methods, strings.ToUpper(method)) {
		return LegacyRule{}, false
	}
	return rule, true
}

// LocalHandler returns the handler tag for a locally served path.
func (t *Table) LocalHandler(path string) (string, bool) {
	tag, ok := t.local[Canonicalize(path)]
	return tag, ok
}

// LocalPaths returns the locally served paths in declaration order.
func (t *Table) LocalPaths() []LocalPath {
	return append([]LocalPath(nil), t.localOrd...)
}

func (t *Table) allRoutes() []*Route {
	var routes []*Route
	for _, rs := range t.static {
		routes = append(routes, rs...)
	}
	return append(routes, t.dynamic...)
}

func upperAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}
