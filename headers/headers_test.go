package headers

import (
	"testing"

	"github.com/pkg/errors"
)

func TestSimple_Make(t *testing.T) {
	testCases := []struct {
		name     string
		builder  Simple
		value    string
		expected Header
	}{
		{"HSTS default", StrictTransportSecurity, "", Header{"Strict-Transport-Security", "max-age=631138519"}},
		{"HSTS custom", StrictTransportSecurity, "max-age=10; includeSubdomains", Header{"Strict-Transport-Security", "max-age=10; includeSubdomains"}},
		{"XFO default", XFrameOptions, "", Header{"X-Frame-Options", "sameorigin"}},
		{"XCTO default", XContentTypeOptions, "", Header{"X-Content-Type-Options", "nosniff"}},
		{"XXP default", XXSSProtection, "", Header{"X-XSS-Protection", "1; mode=block"}},
		{"XDO default", XDownloadOptions, "", Header{"X-Download-Options", "noopen"}},
		{"XPCDP default", XPermittedCrossDomainPolicies, "", Header{"X-Permitted-Cross-Domain-Policies", "none"}},
		{"Referrer custom", ReferrerPolicy, "no-referrer", Header{"Referrer-Policy", "no-referrer"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.builder.Make(tc.value); got != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}

func TestSimple_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		builder Simple
		value   string
		wantErr bool
	}{
		{"HSTS valid", StrictTransportSecurity, "max-age=123; includeSubdomains; preload", false},
		{"HSTS missing max-age", StrictTransportSecurity, "includeSubdomains", true},
		{"XFO deny", XFrameOptions, "DENY", false},
		{"XFO allow-from", XFrameOptions, "allow-from: https://example.com", false},
		{"XFO garbage", XFrameOptions, "sameorigin-ish", true},
		{"XCTO wrong", XContentTypeOptions, "sniff", true},
		{"XXP report", XXSSProtection, "1; mode=block; report=/xss", false},
		{"XXP disabled with mode", XXSSProtection, "0; mode=block", true},
		{"XDO wrong", XDownloadOptions, "open", true},
		{"XPCDP master-only", XPermittedCrossDomainPolicies, "master-only", false},
		{"XPCDP unknown", XPermittedCrossDomainPolicies, "some", true},
		{"Referrer list", ReferrerPolicy, "no-referrer, strict-origin-when-cross-origin", false},
		{"Referrer unknown", ReferrerPolicy, "everywhere", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.builder.Validate(Value(tc.value))
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("Expected *ConfigError, got %T", err)
				}
				if cfgErr.Key != tc.builder.Key {
					t.Errorf("Expected key %q, got %q", tc.builder.Key, cfgErr.Key)
				}
			}
		})
	}

	t.Run("Opted out setting is always valid", func(t *testing.T) {
		if err := StrictTransportSecurity.Validate(OptedOut); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestClearSiteData(t *testing.T) {
	t.Run("All types by default", func(t *testing.T) {
		h := ClearSiteData{}.Make()
		expected := `"cache", "cookies", "storage", "executionContexts"`
		if h.Value != expected {
			t.Errorf("Expected %s, got %s", expected, h.Value)
		}
	})

	t.Run("Selected types", func(t *testing.T) {
		h := ClearSiteData{Types: []string{ClearCache}}.Make()
		if h.Name != "Clear-Site-Data" || h.Value != `"cache"` {
			t.Errorf("Unexpected header %+v", h)
		}
	})

	t.Run("Unknown type", func(t *testing.T) {
		if err := (ClearSiteData{Types: []string{"everything"}}).Validate(); err == nil {
			t.Error("Expected error for unknown type")
		}
	})
}

func TestExpectCT(t *testing.T) {
	h := ExpectCT{MaxAge: 86400, Enforce: true, ReportURI: "https://report.example.com"}.Make()
	expected := `enforce, max-age=86400, report-uri="https://report.example.com"`
	if h.Value != expected {
		t.Errorf("Expected %s, got %s", expected, h.Value)
	}
	if err := (ExpectCT{MaxAge: -1}).Validate(); err == nil {
		t.Error("Expected error for negative max_age")
	}
}

func TestPublicKeyPins(t *testing.T) {
	hpkp := PublicKeyPins{
		MaxAge:            1000,
		Pins:              []Pin{{"sha256", "abc"}, {"sha256", "def"}},
		IncludeSubdomains: true,
		ReportURI:         "https://report.example.com/hpkp",
	}

	t.Run("Make", func(t *testing.T) {
		h := hpkp.Make()
		expected := `max-age=1000; pin-sha256="abc"; pin-sha256="def"; report-uri="https://report.example.com/hpkp"; includeSubDomains`
		if h.Name != "Public-Key-Pins" || h.Value != expected {
			t.Errorf("Unexpected header %+v", h)
		}
	})

	t.Run("Report only name", func(t *testing.T) {
		ro := hpkp
		ro.ReportOnly = true
		if h := ro.Make(); h.Name != "Public-Key-Pins-Report-Only" {
			t.Errorf("Expected report-only header name, got %s", h.Name)
		}
	})

	t.Run("Report host", func(t *testing.T) {
		if host := hpkp.ReportHost(); host != "report.example.com" {
			t.Errorf("Expected report.example.com, got %s", host)
		}
	})

	t.Run("Too few pins", func(t *testing.T) {
		if err := (PublicKeyPins{MaxAge: 1, Pins: []Pin{{"sha256", "abc"}}}).Validate(); err == nil {
			t.Error("Expected error with a single pin")
		}
	})
}

func TestParseKey(t *testing.T) {
	for _, s := range []string{"x_frame_options", "x-frame-options"} {
		if k, ok := ParseKey(s); !ok || k != KeyXFrameOptions {
			t.Errorf("ParseKey(%q) = %q, %v", s, k, ok)
		}
	}
	if _, ok := ParseKey("x-powered-by"); ok {
		t.Error("Expected unknown key")
	}
}
