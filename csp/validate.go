package csp

import (
	"strings"

	"github.com/secinto/secure-headers/headers"
)

// unquotedKeywords must be single quoted to mean anything in a source list.
var unquotedKeywords = map[string]bool{
	"self":          true,
	"none":          true,
	"unsafe-eval":   true,
	"unsafe-inline": true,
	"inline":        true,
	"eval":          true,
}

// Validate checks p for use as an enforced policy. Errors carry headers.KeyCSP.
func Validate(p *Policy) error {
	return validate(p, headers.KeyCSP)
}

// ValidateReportOnly checks p for use as a report-only policy.
func ValidateReportOnly(p *Policy) error {
	return validate(p, headers.KeyCSPReportOnly)
}

func validate(p *Policy, key headers.Key) error {
	if p.IsOptOut() {
		return nil
	}
	if _, ok := p.directives[DefaultSrc]; !ok {
		return headers.NewConfigError(key, "default-src is required")
	}
	for _, d := range p.Directives() {
		if !Known(d) {
			return headers.NewConfigError(key, "unknown directive %q", d)
		}
		v := p.directives[d]
		if v.Kind() != Kind(d) {
			return headers.NewConfigError(key, "%s must be a %s, got a %s", d, Kind(d), v.Kind())
		}
		sources, ok := v.(Sources)
		if !ok {
			continue
		}
		for _, s := range sources {
			if unquotedKeywords[strings.ToLower(s)] {
				return headers.NewConfigError(key, "%s contains an invalid keyword source (%s), it must be single quoted", d, s)
			}
			if strings.TrimSpace(s) != s || s == "" {
				return headers.NewConfigError(key, "%s contains a blank or padded source %q", d, s)
			}
		}
	}
	if strings.ContainsAny(p.scriptNonce+p.styleNonce, "'; ") {
		return headers.NewConfigError(key, "nonces must not contain quotes, blanks or semicolons")
	}
	return nil
}
