package request

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	curlUA   = "curl/8.0.1"
)

func newStore(t *testing.T) *config.Store {
	t.Helper()
	s := config.NewStore()
	_, err := s.Default(func(c *config.Configuration) error {
		return c.SetCSP(csp.NewPolicy(csp.Directives{csp.DefaultSrc: csp.Sources{csp.Self}}))
	})
	if err != nil {
		t.Fatalf("Could not configure store: %v", err)
	}
	return s
}

func newRequest(t *testing.T, s *config.Store, ua string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	r.TLS = &tls.ConnectionState{}
	r.Header.Set("User-Agent", ua)
	r, err := Attach(r, s)
	if err != nil {
		t.Fatalf("Could not attach state: %v", err)
	}
	return r
}

func cspValue(t *testing.T, r *http.Request, name string) string {
	t.Helper()
	hs, err := HeaderSet(r)
	if err != nil {
		t.Fatalf("HeaderSet failed: %v", err)
	}
	v, _ := hs.Get(name)
	return v
}

func TestAppendDirectives(t *testing.T) {
	s := newStore(t)
	r := newRequest(t, s, chromeUA)

	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ScriptSrc: csp.Sources{"cdn.example"}})); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'self'; script-src 'self' cdn.example;" {
		t.Errorf("Unexpected CSP %q", got)
	}
	if !Dynamic(r) {
		t.Error("Expected a working copy after a real change")
	}

	other := newRequest(t, s, chromeUA)
	if got := cspValue(t, other, csp.HeaderName); got != "default-src 'self';" {
		t.Errorf("Another request saw the change: %q", got)
	}
	def, _ := s.Get("")
	if h, _ := def.Cached(headers.KeyCSP, csp.Chrome); h.Value != "default-src 'self';" {
		t.Errorf("Default configuration was mutated: %q", h.Value)
	}
}

func TestAppendDirectives_Repeated(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	for _, src := range []string{"a.example", "b.example", "a.example"} {
		if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{src}})); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'self'; img-src 'self' a.example b.example;" {
		t.Errorf("Unexpected CSP %q", got)
	}
}

func TestAppendDirectives_Idempotent(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.DefaultSrc: csp.Sources{csp.Self}})); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if Dynamic(r) {
		t.Error("Idempotent additions must not create a working copy")
	}
}

func TestAppendDirectives_OptedOut(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	if err := OptOut(r, headers.KeyCSP); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ScriptSrc: csp.Sources{"a.example"}}))
	var cfgErr *headers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected config error when appending to an opted-out policy, got %v", err)
	}
}

func TestAppendDirectives_FailureLeavesRequestUntouched(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ScriptSrc: csp.Sources{"evil.example"}}), Both)
	var cfgErr *headers.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != headers.KeyCSPReportOnly {
		t.Fatalf("Expected report-only config error, got %v", err)
	}
	if Dynamic(r) {
		t.Error("A failed append must not create a working copy")
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'self';" {
		t.Errorf("A failed append must not change the enforced policy, got %q", got)
	}

	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{"a.example"}})); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ScriptSrc: csp.Sources{"evil.example"}}), Both); err == nil {
		t.Fatal("Expected error for an opted-out report-only policy")
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'self'; img-src 'self' a.example;" {
		t.Errorf("A failed append must keep earlier changes only, got %q", got)
	}
}

func TestAppendDirectives_GuessTarget(t *testing.T) {
	s := newStore(t)
	_, err := s.Override("report", "", func(c *config.Configuration) error {
		c.OptOut(headers.KeyCSP)
		return c.SetCSPReportOnly(csp.NewPolicy(csp.Directives{csp.DefaultSrc: csp.Sources{csp.Self}}))
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	r := newRequest(t, s, chromeUA)
	if err := UseOverride(r, "report"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{"a.example"}})); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, r, csp.HeaderNameReportOnly); got != "default-src 'self'; img-src 'self' a.example;" {
		t.Errorf("Unexpected report-only CSP %q", got)
	}
	if got := cspValue(t, r, csp.HeaderName); got != "" {
		t.Errorf("Enforced CSP must stay opted out, got %q", got)
	}

	if err := AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{"b.example"}}), Enforced); err == nil {
		t.Error("Expected error for an explicit opted-out target")
	}
}

func TestOverrideDirectives(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	err := OverrideDirectives(r, csp.NewPolicy(csp.Directives{
		csp.DefaultSrc: csp.Sources{csp.None},
		csp.ScriptSrc:  csp.Sources{"cdn.example"},
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'none'; script-src cdn.example;" {
		t.Errorf("Unexpected CSP %q", got)
	}
}

func TestOptOutOfAll(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	if err := OptOutOfAll(r); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	hs, err := HeaderSet(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(hs) != 0 {
		t.Errorf("Expected no headers, got %v", hs)
	}
	c, _ := Cookies(r)
	if got := cookie.Flag("a=1", c); got != "a=1" {
		t.Errorf("Expected cookies untouched, got %q", got)
	}
}

func TestUseOverride_Unknown(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	var notReady *config.NotYetConfiguredError
	if err := UseOverride(r, "missing"); !errors.As(err, &notReady) {
		t.Errorf("Expected NotYetConfiguredError, got %v", err)
	}
}

func TestUseNamedAppend(t *testing.T) {
	s := newStore(t)
	err := s.NamedAppend("uploads", func(r *http.Request) *csp.Policy {
		return csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{"uploads." + r.Host}})
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	r := newRequest(t, s, chromeUA)
	if err := UseNamedAppend(r, "uploads"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, r, csp.HeaderName); got != "default-src 'self'; img-src 'self' uploads.example.com;" {
		t.Errorf("Unexpected CSP %q", got)
	}
	if err := UseNamedAppend(r, "missing"); err == nil {
		t.Error("Expected error for unknown named append")
	}
}

func TestNonces(t *testing.T) {
	s := newStore(t)
	r := newRequest(t, s, chromeUA)

	nonce, err := ScriptNonce(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	again, _ := StyleNonce(r)
	if nonce == "" || again != nonce {
		t.Fatalf("Expected one nonce per request, got %q and %q", nonce, again)
	}

	expected := "default-src 'self'; script-src 'self' 'nonce-" + nonce + "'; style-src 'self' 'nonce-" + nonce + "';"
	if got := cspValue(t, r, csp.HeaderName); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	legacy := newRequest(t, s, curlUA)
	if _, err := ScriptNonce(legacy); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, legacy, csp.HeaderName); strings.Contains(got, "nonce-") {
		t.Errorf("Nonce must not be sent to browsers without nonce support: %q", got)
	}
}

func TestOverrideXFrameOptions(t *testing.T) {
	r := newRequest(t, newStore(t), chromeUA)
	if err := OverrideXFrameOptions(r, "deny"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cspValue(t, r, "X-Frame-Options"); got != "deny" {
		t.Errorf("Expected deny, got %q", got)
	}
	if err := OverrideXFrameOptions(r, "maybe"); err == nil {
		t.Error("Expected validation error")
	}
}

func TestCookies_PlainHTTP(t *testing.T) {
	s := newStore(t)
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	r, err := Attach(r, s)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Cookies(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := cookie.Flag("a=1", c); got != "a=1; HttpOnly; SameSite=Lax" {
		t.Errorf("Unexpected flags %q", got)
	}
	hs, _ := HeaderSet(r)
	if _, ok := hs.Get("Strict-Transport-Security"); ok {
		t.Error("HSTS must not be sent over plain http")
	}
}

func TestNotAttached(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := HeaderSet(r); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Expected ErrNotAttached, got %v", err)
	}
	if err := AppendDirectives(r, csp.NewPolicy(nil)); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Expected ErrNotAttached, got %v", err)
	}
}
