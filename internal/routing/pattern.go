package routing

import (
	"fmt"
	"regexp"
	"strings"
)

var paramSegment = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)$`)

// Pattern is a route template compiled into a regular expression and the
// ordered list of its named parameters.
type Pattern struct {
	raw        string
	regex      *regexp.Regexp
	paramNames []string
	wildcard   bool
}

// CompilePattern compiles a route template such as "/api/:version/*".
func CompilePattern(raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, raw)
	}

	segments := strings.Split(strings.TrimPrefix(Canonicalize(raw), "/"), "/")
	p := &Pattern{raw: raw}
	seen := make(map[string]bool)

	var b strings.Builder
	b.WriteString("^")

	for i, seg := range segments {
		switch {
		case seg == "*":
			if i != len(segments)-1 {
				return nil, fmt.Errorf("%w: %q has a wildcard before the last segment", ErrInvalidPattern, raw)
			}
			b.WriteString(`(?:/.*)?`)
			p.wildcard = true

		case strings.HasPrefix(seg, ":"):
			m := paramSegment.FindStringSubmatch(seg)
			if m == nil {
				return nil, fmt.Errorf("%w: %q has a malformed parameter %q", ErrInvalidPattern, raw, seg)
			}
			if seen[m[1]] {
				return nil, fmt.Errorf("%w: %q repeats parameter %q", ErrInvalidPattern, raw, m[1])
			}
			seen[m[1]] = true
			p.paramNames = append(p.paramNames, m[1])
			b.WriteString(`/([^/]+)`)

		default:
			if strings.Contains(seg, "*") {
				return nil, fmt.Errorf("%w: %q uses * inside a segment", ErrInvalidPattern, raw)
			}
			b.WriteString("/")
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
	}
	p.regex = regex

	return p, nil
}

// Match reports whether the canonical path matches and binds each named
// parameter to its segment.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	m := p.regex.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	params := make(map[string]string, len(p.paramNames))
	for i, name := range p.paramNames {
		params[name] = m[i+1]
	}
	return params, true
}

// HasParams reports whether the template declares named parameters.
func (p *Pattern) HasParams() bool {
	return len(p.paramNames) > 0
}

// HasParam reports whether the template declares the given parameter.
func (p *Pattern) HasParam(name string) bool {
	for _, n := range p.paramNames {
		if n == name {
			return true
		}
	}
	return false
}

// ParamNames returns the named parameters in template order.
func (p *Pattern) ParamNames() []string {
	return append([]string(nil), p.paramNames...)
}

// Wildcard reports whether the template ends in "*".
func (p *Pattern) Wildcard() bool {
	return p.wildcard
}

// Regexp returns the compiled expression source.
func (p *Pattern) Regexp() string {
	return p.regex.String()
}

// String returns the template as configured.
func (p *Pattern) String() string {
	return p.raw
}

// Canonicalize drops one trailing slash from any path longer than "/" and
// maps the empty path to "/".
func Canonicalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}
