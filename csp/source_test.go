package csp

import "testing"

func TestParseSource(t *testing.T) {
	testCases := []struct {
		token    string
		expected SourceExpression
	}{
		{"'self'", QuotedExpression{Value: "self"}},
		{"'nonce-abc123'", QuotedExpression{Value: "nonce-abc123"}},
		{"data:", SchemeExpression{Scheme: "data"}},
		{"https:", SchemeExpression{Scheme: "https"}},
		{"/csp_report", PathEndpoint{Path: "/csp_report"}},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			got := ParseSource(tc.token)
			if got != tc.expected {
				t.Errorf("ParseSource(%q) = %#v, expected %#v", tc.token, got, tc.expected)
			}
			if got.String() != tc.token {
				t.Errorf("String() = %q, expected %q", got.String(), tc.token)
			}
		})
	}

	t.Run("Host expression", func(t *testing.T) {
		h, ok := ParseSource("https://*.example.com:443/static/").(HostExpression)
		if !ok {
			t.Fatal("Expected a HostExpression")
		}
		if h.Scheme != "https" || h.Host != "*.example.com" || h.Port != "443" || h.Path != "/static/" {
			t.Errorf("Unexpected parts %+v", h)
		}
		if !h.Wildcard() {
			t.Error("Expected wildcard host")
		}
	})

	t.Run("Bare star", func(t *testing.T) {
		h, ok := ParseSource("*").(HostExpression)
		if !ok || !h.Wildcard() {
			t.Errorf("Expected wildcard host expression, got %#v", h)
		}
	})

	t.Run("Host with port", func(t *testing.T) {
		h, ok := ParseSource("localhost:8080").(HostExpression)
		if !ok || h.Host != "localhost" || h.Port != "8080" {
			t.Errorf("Unexpected parse %#v", h)
		}
	})

	t.Run("Unparseable token is kept verbatim", func(t *testing.T) {
		src := ParseSource("exa mple^.com")
		h, ok := src.(HostExpression)
		if !ok {
			t.Fatalf("Expected fallback HostExpression, got %T", src)
		}
		if h.String() != "exa mple^.com" {
			t.Errorf("Expected token to round-trip, got %q", h.String())
		}
		if h.Wildcard() {
			t.Error("Fallback expression must not act as a wildcard")
		}
	})
}

func TestMatchesSameOrSuperset(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected bool
	}{
		{"*.github.com", "asdf.github.com", true},
		{"*.github.com", "a.b.github.com", true},
		{"*.github.com", "github.com", false},
		{"*.github.com", "*.a.github.com", true},
		{"asdf.github.com", "*.github.com", false},
		{"https://*.github.com", "asdf.github.com", false},
		{"https://*.github.com", "https://asdf.github.com", true},
		{"*.example.com:*", "a.example.com:8080", true},
		{"*.example.com", "a.example.com:8080", false},
		{"*.example.com:443", "a.example.com:8443", false},
		{"*.example.com/js/", "a.example.com/js/app.js", true},
		{"*.example.com/js", "a.example.com/jsx", false},
		{"*.example.com", "a.example.com/any/path", true},
		{"*.Example.COM", "a.example.com", true},
		{"'self'", "'self'", true},
		{"'self'", "'none'", false},
		{"https:", "https://a.example.com", true},
		{"https:", "a.example.com", false},
		{"data:", "data:", true},
		{"/report", "/report", true},
		{"*.example.com", "'self'", false},
		{"exa mple", "exa mple", true},
	}

	for _, tc := range testCases {
		t.Run(tc.a+" covers "+tc.b, func(t *testing.T) {
			if got := ParseSource(tc.a).MatchesSameOrSuperset(ParseSource(tc.b)); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}
