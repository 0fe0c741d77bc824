package routing

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// RewriteRule substitutes Match (a regular expression that may contain
// ":param" placeholders) with Replace in the request path.
type RewriteRule struct {
	Match   string `json:"match"`
	Replace string `json:"replace"`
}

type compiledRewrite struct {
	rule RewriteRule

	// static is set when neither side references a route parameter.
	static *regexp.Regexp
}

func compileRewrite(rule RewriteRule, pattern *Pattern) (*compiledRewrite, error) {
	if rule.Match == "" {
		return nil, fmt.Errorf("%w: empty match expression", ErrInvalidRewrite)
	}

	cr := &compiledRewrite{rule: rule}

	if !usesParams(rule.Match, pattern) && !usesParams(rule.Replace, pattern) {
		regex, err := regexp.Compile(rule.Match)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRewrite, rule.Match, err)
		}
		cr.static = regex
		return cr, nil
	}

	// Placeholders are substituted per request; make sure the expression
	// still compiles once they are filled in.
	sample := make(map[string]string)
	for _, name := range pattern.paramNames {
		sample[name] = "x"
	}
	if _, err := regexp.Compile(substituteMatch(rule.Match, sample)); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRewrite, rule.Match, err)
	}

	return cr, nil
}

func (cr *compiledRewrite) apply(path string, params map[string]string) (string, error) {
	if cr.static != nil {
		return cr.static.ReplaceAllString(path, cr.rule.Replace), nil
	}

	regex, err := regexp.Compile(substituteMatch(cr.rule.Match, params))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidRewrite, cr.rule.Match, err)
	}
	return regex.ReplaceAllString(path, substituteReplace(cr.rule.Replace, params)), nil
}

func usesParams(s string, pattern *Pattern) bool {
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if pattern.HasParam(m[1]) {
			return true
		}
	}
	return false
}

func substituteMatch(s string, params map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(token string) string {
		if v, ok := params[token[1:]]; ok {
			return regexp.QuoteMeta(v)
		}
		return token
	})
}

func substituteReplace(s string, params map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(token string) string {
		if v, ok := params[token[1:]]; ok {
			return strings.ReplaceAll(v, "$", "$$")
		}
		return token
	})
}
