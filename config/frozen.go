package config

import (
	"net"
	"strings"

	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

// HeaderSet is an ordered list of headers to write on a response.
type HeaderSet []headers.Header

// Get returns the value of the named header, matched case-insensitively.
func (hs HeaderSet) Get(name string) (string, bool) {
	for _, h := range hs {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Map returns the set as header name to value.
func (hs HeaderSet) Map() map[string]string {
	m := make(map[string]string, len(hs))
	for _, h := range hs {
		m[h.Name] = h.Value
	}
	return m
}

// Frozen is a validated, registered configuration. It never changes after
// it was built and is safe for concurrent use. Headers for every variation
// are rendered once when it is built.
type Frozen struct {
	name   string
	config *Configuration
	cache  map[csp.Variation][]entry
}

// freeze validates a private copy of c and renders its headers.
func freeze(name string, c *Configuration) (*Frozen, error) {
	own := c.Dup()
	if err := own.Validate(); err != nil {
		return nil, err
	}
	f := &Frozen{
		name:   name,
		config: own,
		cache:  make(map[csp.Variation][]entry, len(csp.Variations)),
	}
	for _, v := range csp.Variations {
		entries, err := own.render(v)
		if err != nil {
			return nil, err
		}
		f.cache[v] = entries
	}
	return f, nil
}

func (f *Frozen) Name() string {
	return f.name
}

// Dup returns a mutable working copy.
func (f *Frozen) Dup() *Configuration {
	return f.config.Dup()
}

// CSP returns a copy of the enforced policy.
func (f *Frozen) CSP() *csp.Policy {
	return f.config.csp.Clone()
}

// CSPReportOnly returns a copy of the report-only policy.
func (f *Frozen) CSPReportOnly() *csp.Policy {
	return f.config.cspReportOnly.Clone()
}

// Cookies returns a copy of the cookie flagging rules.
func (f *Frozen) Cookies() cookie.Config {
	return f.config.cookies.Clone()
}

// Cached returns the precomputed header for key and variation.
func (f *Frozen) Cached(k headers.Key, v csp.Variation) (headers.Header, bool) {
	for _, e := range f.entries(v) {
		if e.key == k {
			return e.header, true
		}
	}
	return headers.Header{}, false
}

// HeaderSet returns the precomputed headers for variation v, filtered for
// the request's scheme and host.
func (f *Frozen) HeaderSet(v csp.Variation, secure bool, host string) HeaderSet {
	return f.config.filter(f.entries(v), secure, host)
}

// HeaderSetFor resolves the variation of userAgent and returns its headers.
func (f *Frozen) HeaderSetFor(userAgent string, secure bool, host string) HeaderSet {
	return f.HeaderSet(csp.VariationFor(userAgent), secure, host)
}

func (f *Frozen) entries(v csp.Variation) []entry {
	if e, ok := f.cache[v]; ok {
		return e
	}
	return f.cache[csp.Other]
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
