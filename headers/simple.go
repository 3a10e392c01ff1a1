package headers

import (
	"regexp"
	"strings"
)

// Setting configures a header whose value is a single string. The zero value
// renders the header's default.
type Setting struct {
	Value  string
	OptOut bool
}

// OptedOut is the Setting that suppresses a header.
var OptedOut = Setting{OptOut: true}

// Value returns a Setting carrying v.
func Value(v string) Setting {
	return Setting{Value: v}
}

// Simple builds a header with a fixed name, a default value and a validator.
type Simple struct {
	Key      Key
	Name     string
	Default  string
	validate func(value string) error
}

// Make renders the header. An empty value renders the default.
func (s Simple) Make(value string) Header {
	if value == "" {
		value = s.Default
	}
	return Header{Name: s.Name, Value: value}
}

// Validate checks a configured value. Opted-out and empty settings are valid.
func (s Simple) Validate(setting Setting) error {
	if setting.OptOut || setting.Value == "" || s.validate == nil {
		return nil
	}
	return s.validate(setting.Value)
}

var (
	validHSTS = regexp.MustCompile(`(?i)^max-age=\d+(; includeSubdomains)?(; preload)?$`)
	validXFO  = regexp.MustCompile(`(?i)^(sameorigin$|deny$|allow-from[:\s])`)
	validXXP  = regexp.MustCompile(`(?i)^[01](; mode=block)?(; report=.*)?$`)

	permittedCrossDomainPolicies = []string{"all", "none", "master-only", "by-content-type", "by-ftp-filename"}

	referrerPolicies = []string{
		"no-referrer",
		"no-referrer-when-downgrade",
		"same-origin",
		"strict-origin",
		"strict-origin-when-cross-origin",
		"origin",
		"origin-when-cross-origin",
		"unsafe-url",
	}
)

var (
	StrictTransportSecurity = Simple{
		Key:     KeyHSTS,
		Name:    "Strict-Transport-Security",
		Default: "max-age=631138519",
		validate: func(v string) error {
			if !validHSTS.MatchString(v) {
				return NewConfigError(KeyHSTS, "invalid value %q, expected max-age=<seconds>[; includeSubdomains][; preload]", v)
			}
			return nil
		},
	}

	XFrameOptions = Simple{
		Key:     KeyXFrameOptions,
		Name:    "X-Frame-Options",
		Default: "sameorigin",
		validate: func(v string) error {
			if !validXFO.MatchString(v) {
				return NewConfigError(KeyXFrameOptions, "value must be sameorigin, deny or allow-from:<uri>, got %q", v)
			}
			return nil
		},
	}

	XContentTypeOptions = Simple{
		Key:     KeyXContentTypeOptions,
		Name:    "X-Content-Type-Options",
		Default: "nosniff",
		validate: func(v string) error {
			if !strings.EqualFold(v, "nosniff") {
				return NewConfigError(KeyXContentTypeOptions, "value can only be nosniff, got %q", v)
			}
			return nil
		},
	}

	XXSSProtection = Simple{
		Key:     KeyXXSSProtection,
		Name:    "X-XSS-Protection",
		Default: "1; mode=block",
		validate: func(v string) error {
			if !validXXP.MatchString(v) {
				return NewConfigError(KeyXXSSProtection, "invalid value %q", v)
			}
			if strings.HasPrefix(v, "0") && strings.Contains(strings.ToLower(v), "mode") {
				return NewConfigError(KeyXXSSProtection, "mode and report are only valid when protection is enabled (1)")
			}
			return nil
		},
	}

	XDownloadOptions = Simple{
		Key:     KeyXDownloadOptions,
		Name:    "X-Download-Options",
		Default: "noopen",
		validate: func(v string) error {
			if !strings.EqualFold(v, "noopen") {
				return NewConfigError(KeyXDownloadOptions, "value can only be noopen, got %q", v)
			}
			return nil
		},
	}

	XPermittedCrossDomainPolicies = Simple{
		Key:     KeyXPermittedCrossDomainPolicies,
		Name:    "X-Permitted-Cross-Domain-Policies",
		Default: "none",
		validate: func(v string) error {
			if !contains(permittedCrossDomainPolicies, strings.ToLower(v)) {
				return NewConfigError(KeyXPermittedCrossDomainPolicies, "value must be one of %s, got %q",
					strings.Join(permittedCrossDomainPolicies, ", "), v)
			}
			return nil
		},
	}

	ReferrerPolicy = Simple{
		Key:     KeyReferrerPolicy,
		Name:    "Referrer-Policy",
		Default: "origin-when-cross-origin",
		validate: func(v string) error {
			for _, p := range strings.Split(v, ",") {
				if !contains(referrerPolicies, strings.ToLower(strings.TrimSpace(p))) {
					return NewConfigError(KeyReferrerPolicy, "unknown referrer policy %q", p)
				}
			}
			return nil
		},
	}
)

// SimpleFor returns the builder for a single-string header key.
func SimpleFor(k Key) (Simple, bool) {
	switch k {
	case KeyHSTS:
		return StrictTransportSecurity, true
	case KeyXFrameOptions:
		return XFrameOptions, true
	case KeyXContentTypeOptions:
		return XContentTypeOptions, true
	case KeyXXSSProtection:
		return XXSSProtection, true
	case KeyXDownloadOptions:
		return XDownloadOptions, true
	case KeyXPermittedCrossDomainPolicies:
		return XPermittedCrossDomainPolicies, true
	case KeyReferrerPolicy:
		return ReferrerPolicy, true
	}
	return Simple{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
