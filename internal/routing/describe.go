package routing

// RouteInfo is the externally visible form of a compiled route.
type RouteInfo struct {
	Pattern                   string        `json:"pattern"`
	Regexp                    string        `json:"regexp"`
	Target                    string        `json:"target"`
	Methods                   []string      `json:"methods,omitempty"`
	Params                    []string      `json:"params,omitempty"`
	Wildcard                  bool          `json:"wildcard,omitempty"`
	Rewrites                  []RewriteRule `json:"path_rewrite,omitempty"`
	RequiresVersionValidation bool          `json:"version_validation,omitempty"`
}

// TableDescription is a dump of the whole table, served on /routes.
type TableDescription struct {
	Versions VersionPolicy          `json:"versions"`
	Static   map[string][]RouteInfo `json:"routes"`
	Dynamic  []RouteInfo            `json:"dynamic"`
	Legacy   []LegacyRule           `json:"legacy"`
	Local    []LocalPath            `json:"static"`
}

// Describe returns the compiled table in declaration order.
func (t *Table) Describe() TableDescription {
	desc := TableDescription{
		Versions: t.versions,
		Static:   make(map[string][]RouteInfo, len(t.static)),
		Dynamic:  make([]RouteInfo, 0, len(t.dynamic)),
		Legacy:   make([]LegacyRule, 0, len(t.legacy)),
		Local:    t.LocalPaths(),
	}

	for version, routes := range t.static {
		for _, r := range routes {
			desc.Static[version] = append(desc.Static[version], r.info())
		}
	}
	for _, r := range t.dynamic {
		desc.Dynamic = append(desc.Dynamic, r.info())
	}
	for _, rule := range t.legacyOrd {
		desc.Legacy = append(desc.Legacy, t.legacy[rule])
	}

	return desc
}

func (r *Route) info() RouteInfo {
	rules := make([]RewriteRule, 0, len(r.rewrites))
	for _, rw := range r.rewrites {
		rules = append(rules, rw.rule)
	}

	return RouteInfo{
		Pattern:                   r.def.Pattern,
		Regexp:                    r.pattern.Regexp(),
		Target:                    r.def.Target,
		Methods:                   r.def.Methods,
		Params:                    r.pattern.ParamNames(),
		Wildcard:                  r.pattern.Wildcard(),
		Rewrites:                  rules,
		RequiresVersionValidation: r.def.RequiresVersionValidation,
	}
}
