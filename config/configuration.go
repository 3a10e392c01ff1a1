// Package config holds the secure headers Configuration, its frozen
// read-only form with precomputed headers, and the named Store.
package config

import (
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

// Configuration is a mutable set of header settings. It is either being
// built (Default, Override) or is a private working copy obtained from
// Frozen.Dup.
type Configuration struct {
	csp           *csp.Policy
	cspReportOnly *csp.Policy
	dynamicCSP    bool

	settings      map[headers.Key]headers.Setting
	clearSiteData headers.ClearSiteData
	expectCT      *headers.ExpectCT
	hpkp          *headers.PublicKeyPins
	cookies       cookie.Config
}

// New returns a Configuration holding the default settings.
func New() *Configuration {
	c := &Configuration{
		csp:           csp.DefaultPolicy(),
		cspReportOnly: csp.OptOut(),
		settings:      make(map[headers.Key]headers.Setting),
		clearSiteData: headers.ClearSiteData{OptOut: true},
		cookies:       cookie.Defaults(),
	}
	for _, k := range headers.Keys {
		if _, ok := headers.SimpleFor(k); ok {
			c.settings[k] = headers.Setting{}
		}
	}
	c.settings[headers.KeyReferrerPolicy] = headers.OptedOut
	return c
}

// noop returns a Configuration with every header opted out.
func noop() *Configuration {
	c := New()
	for _, k := range headers.Keys {
		c.OptOut(k)
	}
	c.OptOut(headers.KeyCookies)
	return c
}

// CSP returns the enforced policy. Builders may change it in place.
func (c *Configuration) CSP() *csp.Policy {
	return c.csp
}

// CSPReportOnly returns the report-only policy.
func (c *Configuration) CSPReportOnly() *csp.Policy {
	return c.cspReportOnly
}

// SetCSP replaces the enforced policy. A report-only policy is refused, as is
// any replacement once AppendCSP or OverrideCSP changed the policy.
func (c *Configuration) SetCSP(p *csp.Policy) error {
	if c.dynamicCSP {
		return errors.WithStack(&IllegalPolicyModificationError{
			Msg: "the content security policy was modified at request time, use AppendCSP or OverrideCSP instead of SetCSP",
		})
	}
	if p == nil {
		p = csp.OptOut()
	}
	if !p.IsOptOut() && p.ReportOnly() {
		return headers.NewConfigError(headers.KeyCSP, "a report-only policy was given for the enforced header, use SetCSPReportOnly")
	}
	c.csp = p.Clone()
	return nil
}

// SetCSPReportOnly replaces the report-only policy. Configuring a
// report-only policy while the enforced policy is still the built-in
// default opts the enforced policy out.
func (c *Configuration) SetCSPReportOnly(p *csp.Policy) error {
	if p == nil {
		p = csp.OptOut()
	}
	if p.IsOptOut() {
		c.cspReportOnly = p.Clone()
		return nil
	}
	if p.ReportOnlySet() && !p.ReportOnly() {
		return headers.NewConfigError(headers.KeyCSPReportOnly, "report_only must not be false for the report-only header")
	}
	ro := p.Clone()
	ro.SetReportOnly(true)
	c.cspReportOnly = ro

	if !c.csp.IsOptOut() && c.csp.Equal(csp.DefaultPolicy()) {
		gologger.Warning().Msgf("csp_report_only was configured while csp is still the default, csp is opted out")
		c.csp = csp.OptOut()
	}
	return nil
}

// AppendCSP combines additions into the enforced policy.
func (c *Configuration) AppendCSP(additions *csp.Policy) error {
	p, err := csp.CombinePolicies(c.csp, additions)
	if err != nil {
		return err
	}
	c.csp, c.dynamicCSP = p, true
	return nil
}

// AppendCSPReportOnly combines additions into the report-only policy.
func (c *Configuration) AppendCSPReportOnly(additions *csp.Policy) error {
	p, err := csp.CombinePolicies(c.cspReportOnly, additions)
	if err != nil {
		return asReportOnly(err)
	}
	p.SetReportOnly(true)
	c.cspReportOnly, c.dynamicCSP = p, true
	return nil
}

// OverrideCSP replaces the directives that replacements sets.
func (c *Configuration) OverrideCSP(replacements *csp.Policy) {
	c.csp, c.dynamicCSP = csp.OverridePolicies(c.csp, replacements), true
}

// OverrideCSPReportOnly replaces the report-only directives that replacements sets.
func (c *Configuration) OverrideCSPReportOnly(replacements *csp.Policy) {
	p := csp.OverridePolicies(c.cspReportOnly, replacements)
	p.SetReportOnly(true)
	c.cspReportOnly, c.dynamicCSP = p, true
}

// Dynamic reports whether the CSP was changed through Append or Override.
func (c *Configuration) Dynamic() bool {
	return c.dynamicCSP
}

// Setting returns the setting of a single-string header.
func (c *Configuration) Setting(k headers.Key) headers.Setting {
	return c.settings[k]
}

// Set configures a single-string header such as X-Frame-Options.
func (c *Configuration) Set(k headers.Key, s headers.Setting) error {
	if _, ok := headers.SimpleFor(k); !ok {
		return errors.Errorf("%s is not a single value header", k)
	}
	c.settings[k] = s
	return nil
}

func (c *Configuration) ClearSiteData() headers.ClearSiteData {
	return c.clearSiteData
}

func (c *Configuration) SetClearSiteData(v headers.ClearSiteData) {
	v.Types = append([]string(nil), v.Types...)
	c.clearSiteData = v
}

// ExpectCT returns the Expect-CT settings, nil when opted out.
func (c *Configuration) ExpectCT() *headers.ExpectCT {
	return c.expectCT
}

// SetExpectCT enables Expect-CT. Nil opts out.
func (c *Configuration) SetExpectCT(v *headers.ExpectCT) {
	if v == nil {
		c.expectCT = nil
		return
	}
	cp := *v
	c.expectCT = &cp
}

// HPKP returns the Public-Key-Pins settings, nil when opted out.
func (c *Configuration) HPKP() *headers.PublicKeyPins {
	return c.hpkp
}

// SetHPKP enables Public-Key-Pins. Nil opts out.
func (c *Configuration) SetHPKP(v *headers.PublicKeyPins) {
	if v == nil {
		c.hpkp = nil
		return
	}
	cp := *v
	cp.Pins = append([]headers.Pin(nil), v.Pins...)
	c.hpkp = &cp
}

func (c *Configuration) Cookies() cookie.Config {
	return c.cookies
}

func (c *Configuration) SetCookies(v cookie.Config) {
	c.cookies = v.Clone()
}

// OptOut suppresses the header identified by k.
func (c *Configuration) OptOut(k headers.Key) {
	switch k {
	case headers.KeyCSP:
		c.csp = csp.OptOut()
	case headers.KeyCSPReportOnly:
		c.cspReportOnly = csp.OptOut()
	case headers.KeyClearSiteData:
		c.clearSiteData = headers.ClearSiteData{OptOut: true}
	case headers.KeyExpectCT:
		c.expectCT = nil
	case headers.KeyHPKP:
		c.hpkp = nil
	case headers.KeyCookies:
		c.cookies = cookie.OptedOut
	default:
		if _, ok := headers.SimpleFor(k); ok {
			c.settings[k] = headers.OptedOut
		}
	}
}

// Dup returns a deep copy.
func (c *Configuration) Dup() *Configuration {
	d := &Configuration{
		csp:           c.csp.Clone(),
		cspReportOnly: c.cspReportOnly.Clone(),
		dynamicCSP:    c.dynamicCSP,
		settings:      make(map[headers.Key]headers.Setting, len(c.settings)),
		cookies:       c.cookies.Clone(),
	}
	for k, v := range c.settings {
		d.settings[k] = v
	}
	d.SetClearSiteData(c.clearSiteData)
	d.SetExpectCT(c.expectCT)
	d.SetHPKP(c.hpkp)
	return d
}

// Validate checks every header setting.
func (c *Configuration) Validate() error {
	if err := csp.Validate(c.csp); err != nil {
		return err
	}
	if err := csp.ValidateReportOnly(c.cspReportOnly); err != nil {
		return err
	}
	for _, k := range headers.Keys {
		if s, ok := headers.SimpleFor(k); ok {
			if err := s.Validate(c.settings[k]); err != nil {
				return err
			}
		}
	}
	if err := c.clearSiteData.Validate(); err != nil {
		return err
	}
	if c.expectCT != nil {
		if err := c.expectCT.Validate(); err != nil {
			return err
		}
	}
	if c.hpkp != nil {
		if err := c.hpkp.Validate(); err != nil {
			return err
		}
	}
	return c.cookies.Validate()
}

// entry is one rendered header together with its key.
type entry struct {
	key    headers.Key
	header headers.Header
}

// render builds every enabled header for variation v in emission order.
func (c *Configuration) render(v csp.Variation) ([]entry, error) {
	var out []entry
	for _, k := range headers.Keys {
		h, err := c.header(k, v)
		if err != nil {
			return nil, err
		}
		if !h.IsZero() {
			out = append(out, entry{key: k, header: h})
		}
	}
	return out, nil
}

func (c *Configuration) header(k headers.Key, v csp.Variation) (headers.Header, error) {
	switch k {
	case headers.KeyCSP:
		return csp.Render(c.csp, v)
	case headers.KeyCSPReportOnly:
		h, err := csp.Render(c.cspReportOnly, v)
		return h, asReportOnly(err)
	case headers.KeyClearSiteData:
		if c.clearSiteData.OptOut {
			return headers.Header{}, nil
		}
		return c.clearSiteData.Make(), nil
	case headers.KeyExpectCT:
		if c.expectCT == nil {
			return headers.Header{}, nil
		}
		return c.expectCT.Make(), nil
	case headers.KeyHPKP:
		if c.hpkp == nil {
			return headers.Header{}, nil
		}
		return c.hpkp.Make(), nil
	}
	s, ok := headers.SimpleFor(k)
	if !ok || c.settings[k].OptOut {
		return headers.Header{}, nil
	}
	return s.Make(c.settings[k].Value), nil
}

// HeaderSet renders the headers for a request without any cache. Working
// copies use it after request-time changes.
func (c *Configuration) HeaderSet(v csp.Variation, secure bool, host string) (HeaderSet, error) {
	entries, err := c.render(v)
	if err != nil {
		return nil, err
	}
	return c.filter(entries, secure, host), nil
}

// filter drops https-only headers on plain requests and Public-Key-Pins
// when the request goes to its own report host.
func (c *Configuration) filter(entries []entry, secure bool, host string) HeaderSet {
	out := make(HeaderSet, 0, len(entries))
	for _, e := range entries {
		if headers.SecureOnly(e.key) && !secure {
			continue
		}
		if e.key == headers.KeyHPKP && c.hpkp != nil && host != "" && c.hpkp.ReportHost() == hostname(host) {
			continue
		}
		out = append(out, e.header)
	}
	return out
}

// asReportOnly re-keys a CSP config error to the report-only header.
func asReportOnly(err error) error {
	var cfgErr *headers.ConfigError
	if err == nil || !errors.As(err, &cfgErr) {
		return err
	}
	return headers.NewConfigError(headers.KeyCSPReportOnly, "%s", cfgErr.Msg)
}
