package routing

import (
	"fmt"
	"regexp"
	"slices"
)

var pathVersion = regexp.MustCompile(`^/api/(v[0-9]+)(?:/|$)`)

// VersionPolicy lists the API versions the router accepts.
type VersionPolicy struct {
	Current    string   `json:"current"`
	Supported  []string `json:"supported"`
	Deprecated []string `json:"deprecated"`
	Default    string   `json:"default"`
}

// IsSupported reports whether v is a supported version.
func (p VersionPolicy) IsSupported(v string) bool {
	return slices.Contains(p.Supported, v)
}

// IsDeprecated reports whether v is marked deprecated.
func (p VersionPolicy) IsDeprecated(v string) bool {
	return slices.Contains(p.Deprecated, v)
}

// Effective returns v, or the default version when v is empty.
func (p VersionPolicy) Effective(v string) string {
	if v == "" {
		return p.Default
	}
	return v
}

// Validate checks that current and default are supported and that every
// deprecated version is also supported.
func (p VersionPolicy) Validate() []error {
	var errs []error

	if len(p.Supported) == 0 {
		errs = append(errs, fmt.Errorf("%w: no supported versions", ErrInvalidVersions))
	}
	if !p.IsSupported(p.Current) {
		errs = append(errs, fmt.Errorf("%w: current version %q is not supported", ErrInvalidVersions, p.Current))
	}
	if !p.IsSupported(p.Default) {
		errs = append(errs, fmt.Errorf("%w: default version %q is not supported", ErrInvalidVersions, p.Default))
	}
	for _, v := range p.Deprecated {
		if !p.IsSupported(v) {
			errs = append(errs, fmt.Errorf("%w: deprecated version %q is not supported", ErrInvalidVersions, v))
		}
	}

	return errs
}

// VersionFromPath returns the version segment of an "/api/vN/..." path, or
// "" when the path carries none.
func VersionFromPath(path string) string {
	m := pathVersion.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}
