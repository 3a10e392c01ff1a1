// Package headers holds the fixed-format security header builders and the
// types shared by every header kind (keys, rendered headers, config errors).
package headers

import (
	"fmt"

	"github.com/pkg/errors"
)

// Key identifies a header setting inside a configuration.
type Key string

const (
	KeyCSP                           Key = "csp"
	KeyCSPReportOnly                 Key = "csp_report_only"
	KeyHSTS                          Key = "hsts"
	KeyXFrameOptions                 Key = "x_frame_options"
	KeyXContentTypeOptions           Key = "x_content_type_options"
	KeyXXSSProtection                Key = "x_xss_protection"
	KeyXDownloadOptions              Key = "x_download_options"
	KeyXPermittedCrossDomainPolicies Key = "x_permitted_cross_domain_policies"
	KeyReferrerPolicy                Key = "referrer_policy"
	KeyClearSiteData                 Key = "clear_site_data"
	KeyExpectCT                      Key = "expect_certificate_transparency"
	KeyHPKP                          Key = "hpkp"
	KeyCookies                       Key = "cookies"
)

// Keys lists every header key in the order headers are emitted.
var Keys = []Key{
	KeyExpectCT,
	KeyClearSiteData,
	KeyCSP,
	KeyCSPReportOnly,
	KeyHSTS,
	KeyHPKP,
	KeyReferrerPolicy,
	KeyXContentTypeOptions,
	KeyXDownloadOptions,
	KeyXFrameOptions,
	KeyXPermittedCrossDomainPolicies,
	KeyXXSSProtection,
}

// SecureOnly reports whether the header must only be sent over https.
func SecureOnly(k Key) bool {
	return k == KeyHSTS || k == KeyHPKP
}

// ParseKey resolves a configuration key, accepting hyphens in place of underscores.
func ParseKey(s string) (Key, bool) {
	s = hyphenToUnderscore(s)
	if Key(s) == KeyCookies {
		return KeyCookies, true
	}
	for _, k := range Keys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Header is a rendered header name and value.
type Header struct {
	Name  string
	Value string
}

// IsZero reports whether the header carries no name.
func (h Header) IsZero() bool {
	return h.Name == ""
}

// ConfigError is returned when a header setting is invalid.
type ConfigError struct {
	Key Key
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config error: %s", e.Key, e.Msg)
}

// NewConfigError builds a *ConfigError for key with a formatted message.
func NewConfigError(key Key, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)})
}

func hyphenToUnderscore(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}
