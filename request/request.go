// Package request scopes configuration changes to a single HTTP request.
//
// The registered configurations are never modified. The first call that
// changes anything duplicates the active configuration into a working copy
// owned by the request; later calls fold into that copy, and HeaderSet
// renders it once the handler is done. Requests without changes are served
// from the precomputed headers.
package request

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

// Target selects which CSP headers a change applies to.
type Target int

const (
	// Guess applies to every CSP header that is not opted out.
	Guess Target = iota
	Both
	Enforced
	ReportOnly
)

func (t Target) String() string {
	switch t {
	case Both:
		return "both"
	case Enforced:
		return "enforced"
	case ReportOnly:
		return "report_only"
	}
	return "guess"
}

// ErrNotAttached is returned when the request carries no secure headers state.
var ErrNotAttached = errors.New("secure headers state is not attached to the request")

const nonceBytes = 32

type contextKey struct{}

type state struct {
	store   *config.Store
	frozen  *config.Frozen
	working *config.Configuration
	nonce   string
}

// Attach returns r with secure headers state bound to the default
// configuration of store.
func Attach(r *http.Request, store *config.Store) (*http.Request, error) {
	f, err := store.Get(config.DefaultName)
	if err != nil {
		return r, err
	}
	st := &state{store: store, frozen: f}
	return r.WithContext(context.WithValue(r.Context(), contextKey{}, st)), nil
}

func stateFrom(r *http.Request) (*state, error) {
	st, ok := r.Context().Value(contextKey{}).(*state)
	if !ok {
		return nil, errors.WithStack(ErrNotAttached)
	}
	return st, nil
}

// config returns the working copy, creating it on first use.
func (st *state) config() *config.Configuration {
	if st.working == nil {
		st.working = st.frozen.Dup()
	}
	return st.working
}

func (st *state) active() (enforced, reportOnly *csp.Policy) {
	if st.working != nil {
		return st.working.CSP(), st.working.CSPReportOnly()
	}
	return st.frozen.CSP(), st.frozen.CSPReportOnly()
}

func (st *state) resolve(t Target) Target {
	if t != Guess {
		return t
	}
	enforced, reportOnly := st.active()
	switch {
	case !enforced.IsOptOut() && reportOnly.IsOptOut():
		return Enforced
	case enforced.IsOptOut() && !reportOnly.IsOptOut():
		return ReportOnly
	}
	return Both
}

func targetOf(targets []Target) Target {
	if len(targets) == 0 {
		return Guess
	}
	return targets[0]
}

// AppendDirectives combines additions into the request's CSP. Additions
// that change nothing do not create a working copy.
func AppendDirectives(r *http.Request, additions *csp.Policy, target ...Target) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	t := st.resolve(targetOf(target))
	enforced, reportOnly := st.active()

	if st.working == nil {
		idempotent := true
		if t == Both || t == Enforced {
			idempotent = idempotent && csp.IdempotentAdditions(enforced, additions)
		}
		if t == Both || t == ReportOnly {
			idempotent = idempotent && csp.IdempotentAdditions(reportOnly, additions)
		}
		if idempotent {
			return nil
		}
	}

	// Changes land on a copy so a failure leaves the request untouched.
	var c *config.Configuration
	if st.working != nil {
		c = st.working.Dup()
	} else {
		c = st.frozen.Dup()
	}
	if t == Both || t == Enforced {
		if err := c.AppendCSP(additions); err != nil {
			return err
		}
	}
	if t == Both || t == ReportOnly {
		if err := c.AppendCSPReportOnly(additions); err != nil {
			return err
		}
	}
	st.working = c
	return nil
}

// OverrideDirectives replaces the directives that replacements sets.
func OverrideDirectives(r *http.Request, replacements *csp.Policy, target ...Target) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	t := st.resolve(targetOf(target))
	c := st.config()
	if t == Both || t == Enforced {
		c.OverrideCSP(replacements)
	}
	if t == Both || t == ReportOnly {
		c.OverrideCSPReportOnly(replacements)
	}
	return nil
}

// OptOut suppresses the given headers for this request.
func OptOut(r *http.Request, keys ...headers.Key) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	c := st.config()
	for _, k := range keys {
		c.OptOut(k)
	}
	return nil
}

// OptOutOfAll switches the request to the configuration with every header
// opted out.
func OptOutOfAll(r *http.Request) error {
	return UseOverride(r, config.NoopName)
}

// UseOverride switches the request to a named configuration. Changes made
// before the switch are discarded.
func UseOverride(r *http.Request, name string) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	f, err := st.store.Get(name)
	if err != nil {
		return err
	}
	st.frozen, st.working = f, nil
	return nil
}

// UseNamedAppend appends the additions produced by registered named appends.
func UseNamedAppend(r *http.Request, names ...string) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	for _, name := range names {
		fn, err := st.store.NamedAppendFor(name)
		if err != nil {
			return err
		}
		if err := AppendDirectives(r, fn(r)); err != nil {
			return errors.Wrapf(err, "named append %s", name)
		}
	}
	return nil
}

// OverrideXFrameOptions sets X-Frame-Options for this request.
func OverrideXFrameOptions(r *http.Request, value string) error {
	st, err := stateFrom(r)
	if err != nil {
		return err
	}
	s := headers.Value(value)
	if err := headers.XFrameOptions.Validate(s); err != nil {
		return err
	}
	return st.config().Set(headers.KeyXFrameOptions, s)
}

// ScriptNonce returns the request nonce and adds it to script-src.
func ScriptNonce(r *http.Request) (string, error) {
	return nonceFor(r, true)
}

// StyleNonce returns the request nonce and adds it to style-src.
func StyleNonce(r *http.Request) (string, error) {
	return nonceFor(r, false)
}

func nonceFor(r *http.Request, script bool) (string, error) {
	st, err := stateFrom(r)
	if err != nil {
		return "", err
	}
	if st.nonce == "" {
		b := make([]byte, nonceBytes)
		if _, err := rand.Read(b); err != nil {
			return "", errors.Wrap(err, "could not generate nonce")
		}
		st.nonce = base64.StdEncoding.EncodeToString(b)
	}
	additions := csp.NewPolicy(nil)
	if script {
		additions.SetScriptNonce(st.nonce)
	} else {
		additions.SetStyleNonce(st.nonce)
	}
	if err := AppendDirectives(r, additions); err != nil {
		return "", err
	}
	return st.nonce, nil
}

// Dynamic reports whether the request renders its own headers instead of
// the precomputed ones.
func Dynamic(r *http.Request) bool {
	st, err := stateFrom(r)
	return err == nil && st.working != nil
}

// ConfigName returns the name of the configuration the request uses.
func ConfigName(r *http.Request) string {
	st, err := stateFrom(r)
	if err != nil {
		return ""
	}
	return st.frozen.Name()
}

// HeaderSet returns the headers for the request's user agent, scheme and host.
func HeaderSet(r *http.Request) (config.HeaderSet, error) {
	st, err := stateFrom(r)
	if err != nil {
		return nil, err
	}
	v := csp.VariationFor(r.UserAgent())
	secure := IsSecure(r)
	if st.working == nil {
		return st.frozen.HeaderSet(v, secure, r.Host), nil
	}
	return st.working.HeaderSet(v, secure, r.Host)
}

// Cookies returns the cookie rules for the request. Secure is never added
// on plain http.
func Cookies(r *http.Request) (cookie.Config, error) {
	st, err := stateFrom(r)
	if err != nil {
		return cookie.Config{}, err
	}
	var c cookie.Config
	if st.working != nil {
		c = st.working.Cookies().Clone()
	} else {
		c = st.frozen.Cookies()
	}
	if !IsSecure(r) {
		c.Secure = cookie.Never()
	}
	return c, nil
}

// IsSecure reports whether the request arrived over https, directly or
// through a proxy that set X-Forwarded-Proto.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil || strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
