// Package cookie flags Set-Cookie values with the Secure, HttpOnly and
// SameSite attributes according to a per-attribute configuration.
package cookie

import (
	"strings"

	"github.com/secinto/secure-headers/headers"
)

// SameSite is a SameSite attribute value.
type SameSite string

const (
	SameSiteLax    SameSite = "Lax"
	SameSiteStrict SameSite = "Strict"
	SameSiteNone   SameSite = "None"
)

// Rule decides whether an attribute applies to a cookie. A disabled rule
// never applies; an enabled rule applies to every cookie unless Only or
// Except narrow it down by cookie name.
type Rule struct {
	Enabled bool
	Only    []string
	Except  []string
}

// Always applies to every cookie.
func Always() Rule { return Rule{Enabled: true} }

// Never applies to no cookie.
func Never() Rule { return Rule{} }

// OnlyFor applies to the named cookies.
func OnlyFor(names ...string) Rule { return Rule{Enabled: true, Only: names} }

// ExceptFor applies to every cookie but the named ones.
func ExceptFor(names ...string) Rule { return Rule{Enabled: true, Except: names} }

// Applies reports whether the rule flags the cookie called name.
func (r Rule) Applies(name string) bool {
	switch {
	case !r.Enabled:
		return false
	case len(r.Only) > 0:
		return containsName(r.Only, name)
	case len(r.Except) > 0:
		return !containsName(r.Except, name)
	}
	return true
}

// boolean reports whether the rule is a plain "true" without name lists.
func (r Rule) boolean() bool {
	return r.Enabled && len(r.Only) == 0 && len(r.Except) == 0
}

func (r Rule) validate(attr string) error {
	if len(r.Only) > 0 && len(r.Except) > 0 {
		return headers.NewConfigError(headers.KeyCookies, "%s cookie config is invalid, simultaneous use of conditional arguments `only` and `except` is not permitted", attr)
	}
	return nil
}

func (r Rule) clone() Rule {
	return Rule{
		Enabled: r.Enabled,
		Only:    append([]string(nil), r.Only...),
		Except:  append([]string(nil), r.Except...),
	}
}

// SameSiteConfig holds one rule per SameSite value. Lax is checked first,
// then Strict, then None.
type SameSiteConfig struct {
	Lax    Rule
	Strict Rule
	None   Rule
}

// Config is the cookie flagging configuration.
type Config struct {
	Secure   Rule
	HttpOnly Rule
	SameSite SameSiteConfig
	OptOut   bool
}

// OptedOut leaves cookies untouched.
var OptedOut = Config{OptOut: true}

// Defaults flags every cookie secure, HttpOnly and SameSite=Lax.
func Defaults() Config {
	return Config{
		Secure:   Always(),
		HttpOnly: Always(),
		SameSite: SameSiteConfig{Lax: Always()},
	}
}

// Clone deep-copies the name lists.
func (c Config) Clone() Config {
	return Config{
		Secure:   c.Secure.clone(),
		HttpOnly: c.HttpOnly.clone(),
		SameSite: SameSiteConfig{
			Lax:    c.SameSite.Lax.clone(),
			Strict: c.SameSite.Strict.clone(),
			None:   c.SameSite.None.clone(),
		},
		OptOut: c.OptOut,
	}
}

// Validate rejects contradictory rules.
func (c Config) Validate() error {
	if c.OptOut {
		return nil
	}
	rules := []struct {
		attr string
		rule Rule
	}{
		{"secure", c.Secure},
		{"httponly", c.HttpOnly},
		{"samesite lax", c.SameSite.Lax},
		{"samesite strict", c.SameSite.Strict},
		{"samesite none", c.SameSite.None},
	}
	for _, r := range rules {
		if err := r.rule.validate(r.attr); err != nil {
			return err
		}
	}

	lax, strict := c.SameSite.Lax, c.SameSite.Strict
	if (lax.boolean() && strict.Enabled) || (strict.boolean() && lax.Enabled) {
		return headers.NewConfigError(headers.KeyCookies, "samesite cookie config is invalid, combination use of booleans and Hash to configure lax and strict enforcement is not permitted")
	}
	if both := intersect(lax.Only, strict.Only); len(both) > 0 {
		return headers.NewConfigError(headers.KeyCookies, "samesite cookie config is invalid, cookie(s) %s cannot be enforced as lax and strict", strings.Join(both, ", "))
	}
	if both := intersect(lax.Except, strict.Except); len(both) > 0 {
		return headers.NewConfigError(headers.KeyCookies, "samesite cookie config is invalid, cookie(s) %s cannot be excluded from both lax and strict", strings.Join(both, ", "))
	}
	return nil
}

// Flag returns raw with the configured attributes appended. Attributes the
// cookie already carries are never added twice.
func Flag(raw string, c Config) string {
	if c.OptOut {
		return raw
	}
	name, attrs := parse(raw)

	var b strings.Builder
	b.WriteString(raw)
	if c.Secure.Applies(name) && !attrs["secure"] {
		b.WriteString("; secure")
	}
	if c.HttpOnly.Applies(name) && !attrs["httponly"] {
		b.WriteString("; HttpOnly")
	}
	if v := c.SameSite.valueFor(name); v != "" && !attrs["samesite"] {
		b.WriteString("; SameSite=")
		b.WriteString(string(v))
	}
	return b.String()
}

func (s SameSiteConfig) valueFor(name string) SameSite {
	switch {
	case s.Lax.Applies(name):
		return SameSiteLax
	case s.Strict.Applies(name):
		return SameSiteStrict
	case s.None.Applies(name):
		return SameSiteNone
	}
	return ""
}

// parse splits a Set-Cookie value into the cookie name and the set of
// attribute names (lowercased) that follow it.
func parse(raw string) (string, map[string]bool) {
	parts := strings.Split(raw, ";")
	name := parts[0]
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	attrs := make(map[string]bool, len(parts)-1)
	for _, part := range parts[1:] {
		key := part
		if i := strings.IndexByte(key, '='); i >= 0 {
			key = key[:i]
		}
		if key = strings.ToLower(strings.TrimSpace(key)); key != "" {
			attrs[key] = true
		}
	}
	return strings.TrimSpace(name), attrs
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, n := range a {
		if containsName(b, n) && !containsName(out, n) {
			out = append(out, n)
		}
	}
	return out
}
