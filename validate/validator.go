// Package validate checks what a deployed site actually serves against a
// configuration from a config.Store.
package validate

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"gopkg.in/yaml.v3"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

// Validator fetches pages and compares their headers with a configuration.
type Validator struct {
	store    *config.Store
	settings Settings
	client   *http.Client
}

func NewValidator(store *config.Store, settings Settings) *Validator {
	settings = settings.withDefaults()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if settings.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Validator{
		store:    store,
		settings: settings,
		client:   &http.Client{Timeout: settings.Timeout, Transport: transport},
	}
}

// LoadSettings reads validation settings from a YAML file.
func LoadSettings(location string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(location)
	if err != nil {
		return s, errors.Wrap(err, "could not read validation settings")
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "could not parse validation settings %s", location)
	}
	return s, nil
}

// ValidateAll validates every URL of the settings. A URL that cannot be
// fetched is logged and skipped.
func (v *Validator) ValidateAll(ctx context.Context) ([]Report, error) {
	if len(v.settings.URLs) == 0 {
		return nil, errors.New("no urls to validate")
	}
	var reports []Report
	for _, target := range v.settings.URLs {
		r, err := v.Validate(ctx, target)
		if err != nil {
			gologger.Error().Msgf("No response for %s: %s", target, err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Validate fetches target and reports how its headers and inline elements
// differ from the configuration.
func (v *Validator) Validate(ctx context.Context, target string) (Report, error) {
	f, err := v.store.Get(v.settings.Config)
	if err != nil {
		return Report{}, err
	}
	gologger.Info().Msgf("Validating %s", strings.TrimSpace(target))
	page, err := Fetch(ctx, v.client, target, v.settings.UserAgent, v.settings.MaxMetaRedirects)
	if err != nil {
		return Report{}, err
	}

	variation := csp.VariationFor(v.settings.UserAgent)
	secure := strings.EqualFold(page.URL.Scheme, "https")
	expected := f.HeaderSet(variation, secure, page.URL.Host)

	report := Report{URL: target, FinalURL: page.URL, Variation: variation}
	report.Findings = CompareHeaders(expected, page.Header)

	policy := page.Header.Get(csp.HeaderName)
	if policy == "" {
		policy = page.Header.Get(csp.HeaderNameReportOnly)
	}
	if policy != "" {
		inline, err := InlineFindings(policy, page.Body)
		if err != nil {
			return report, err
		}
		report.Findings = append(report.Findings, inline...)
	}
	return report, nil
}

// watchedHeaders are the response headers a configuration can produce.
func watchedHeaders() []string {
	names := []string{
		csp.HeaderName,
		csp.HeaderNameReportOnly,
		"Clear-Site-Data",
		"Expect-CT",
		"Public-Key-Pins",
		"Public-Key-Pins-Report-Only",
	}
	for _, k := range headers.Keys {
		if s, ok := headers.SimpleFor(k); ok {
			names = append(names, s.Name)
		}
	}
	return names
}

// CompareHeaders compares the configured header set with the served headers.
func CompareHeaders(expected config.HeaderSet, served http.Header) []Finding {
	var findings []Finding
	for _, name := range watchedHeaders() {
		want, configured := expected.Get(name)
		got := served.Get(name)
		switch {
		case !configured && got != "":
			findings = append(findings, Finding{Kind: Unexpected, Header: name, Actual: got})
		case configured && got == "":
			findings = append(findings, Finding{Kind: Missing, Header: name, Expected: want})
		case !configured:
		case name == csp.HeaderName || name == csp.HeaderNameReportOnly:
			findings = append(findings, comparePolicies(name, want, got)...)
		case !strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got)):
			findings = append(findings, Finding{Kind: Mismatch, Header: name, Expected: want, Actual: got})
		}
	}
	return findings
}

// comparePolicies compares two policies directive by directive. Nonces are
// per request and ignored. A served directive the configuration does not
// name is accepted when it only repeats default-src.
func comparePolicies(name, want, got string) []Finding {
	expected, served := normalized(want), normalized(got)
	directives := map[csp.Directive]bool{}
	for d := range expected {
		directives[d] = true
	}
	for d := range served {
		directives[d] = true
	}
	ordered := make([]string, 0, len(directives))
	for d := range directives {
		ordered = append(ordered, string(d))
	}
	sort.Strings(ordered)

	var findings []Finding
	for _, dname := range ordered {
		d := csp.Directive(dname)
		w, inExpected := expected[d]
		g, inServed := served[d]
		if !inExpected && csp.IsFetchSource(d) {
			w, inExpected = expected[csp.DefaultSrc]
		}
		if !inServed && csp.IsFetchSource(d) {
			g, inServed = served[csp.DefaultSrc]
		}
		if inExpected && inServed && w == g {
			continue
		}
		findings = append(findings, Finding{Kind: Mismatch, Header: name, Directive: d, Expected: w, Actual: g})
	}
	return findings
}

// normalized returns each directive's tokens without nonces, sorted and
// joined by a space.
func normalized(value string) map[csp.Directive]string {
	out := map[csp.Directive]string{}
	for d, tokens := range parsePolicy(value) {
		kept := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if strings.HasPrefix(strings.ToLower(t), "'nonce-") {
				continue
			}
			kept = append(kept, t)
		}
		sort.Strings(kept)
		out[d] = strings.Join(kept, " ")
	}
	return out
}
