package validate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/secinto/secure-headers/csp"
)

// Settings configures a validation run. It is read from YAML.
type Settings struct {
	Config           string        `yaml:"config,omitempty"`
	UserAgent        string        `yaml:"user_agent,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	MaxMetaRedirects int           `yaml:"max_meta_redirects,omitempty"`
	InsecureTLS      bool          `yaml:"insecure_skip_verify,omitempty"`
	URLs             []string      `yaml:"urls,omitempty"`
}

const (
	defaultTimeout          = 5 * time.Second
	defaultMaxMetaRedirects = 5
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	if s.MaxMetaRedirects <= 0 {
		s.MaxMetaRedirects = defaultMaxMetaRedirects
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	return s
}

// FindingKind classifies a difference between served and configured headers.
type FindingKind string

const (
	// Missing: a configured header was not served.
	Missing FindingKind = "missing"
	// Mismatch: a header was served with another value.
	Mismatch FindingKind = "mismatch"
	// Unexpected: a header opted out in the configuration was served.
	Unexpected FindingKind = "unexpected"
	// InlineBlocked: an inline element is not allowed by the served policy.
	InlineBlocked FindingKind = "inline_blocked"
)

// Finding is one problem found on a page.
type Finding struct {
	Kind      FindingKind
	Header    string
	Directive csp.Directive
	Expected  string
	Actual    string
	Element   string
}

func (f Finding) String() string {
	switch f.Kind {
	case Missing:
		return fmt.Sprintf("[MISS] %s: expected %q", f.Header, f.Expected)
	case Unexpected:
		return fmt.Sprintf("[UNEXPECTED] %s: %q", f.Header, f.Actual)
	case InlineBlocked:
		return fmt.Sprintf("[BLOCKED] %s by %s: %s", f.Element, f.Directive, f.Actual)
	}
	if f.Directive != "" {
		return fmt.Sprintf("[FAIL] %s %s: expected %q, got %q", f.Header, f.Directive, f.Expected, f.Actual)
	}
	return fmt.Sprintf("[FAIL] %s: expected %q, got %q", f.Header, f.Expected, f.Actual)
}

// Report contains the findings for one URL.
type Report struct {
	URL       string
	FinalURL  *url.URL
	Variation csp.Variation
	Findings  []Finding
}

// OK reports whether the page matched the configuration.
func (r Report) OK() bool {
	return len(r.Findings) == 0
}

func (r Report) String() string {
	if r.OK() {
		return fmt.Sprintf("[OK] %s (%s)", r.URL, r.Variation)
	}
	lines := make([]string, 0, len(r.Findings)+1)
	lines = append(lines, fmt.Sprintf("[FAIL] %s (%s)", r.URL, r.Variation))
	for _, f := range r.Findings {
		lines = append(lines, "  "+f.String())
	}
	return strings.Join(lines, "\n")
}
