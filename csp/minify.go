package csp

import (
	"regexp"
	"strings"

	"github.com/projectdiscovery/gologger"
)

var (
	wildcardSources = map[string]bool{
		UnsafeEval:   true,
		UnsafeInline: true,
		Star:         true,
		DataScheme:   true,
		BlobScheme:   true,
	}

	httpScheme = regexp.MustCompile(`^https?://`)
)

// minifyOptions carries the render-time inputs of minification.
type minifyOptions struct {
	nonce           string
	noncesSupported bool
	preserveSchemes bool
}

// Minify reduces a source list to its wire form without nonce injection
// and with http(s) schemes stripped.
func Minify(d Directive, list []string) string {
	return strings.Join(minifySources(d, list, minifyOptions{}), " ")
}

func minifySources(d Directive, list []string, opts minifyOptions) []string {
	sources := make([]string, 0, len(list)+1)
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	if contains(sources, Star) {
		return keepWildcardSources(sources)
	}

	if opts.nonce != "" && (d == ScriptSrc || d == StyleSrc) {
		if opts.noncesSupported {
			sources = append(sources, "'nonce-"+opts.nonce+"'")
		} else {
			sources = append(sources, UnsafeInline)
		}
	}

	if hasOtherThan(sources, None) {
		kept := sources[:0]
		for _, s := range sources {
			if s != None {
				kept = append(kept, s)
			}
		}
		sources = kept
	}

	if d != ReportURI && !opts.preserveSchemes {
		for i, s := range sources {
			sources[i] = httpScheme.ReplaceAllString(s, "")
		}
	}

	return dedup(sources)
}

func keepWildcardSources(sources []string) []string {
	var out []string
	for _, s := range sources {
		if wildcardSources[s] && !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// dedup drops exact duplicates, then any host covered by a distinct
// wildcard host that is also in the list.
func dedup(sources []string) []string {
	var unique []string
	for _, s := range sources {
		if !contains(unique, s) {
			unique = append(unique, s)
		}
	}

	var wild []HostExpression
	for _, s := range unique {
		if h, ok := ParseSource(s).(HostExpression); ok && h.Wildcard() {
			wild = append(wild, h)
		}
	}
	if len(wild) == 0 {
		return unique
	}

	out := unique[:0:0]
	for _, s := range unique {
		expr := ParseSource(s)
		covered := false
		for _, w := range wild {
			if w.String() != s && w.MatchesSameOrSuperset(expr) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, s)
		}
	}
	return out
}

// renderDirective renders one directive segment, or "" when it has nothing to emit.
func renderDirective(d Directive, v Value, opts minifyOptions) string {
	switch val := v.(type) {
	case Flag:
		if val {
			return string(d)
		}
		return ""
	case Text:
		if val == "" {
			return ""
		}
		return string(d) + " " + sanitize(d, string(val))
	case Sources:
		if d == Sandbox && len(val) == 0 {
			return string(d)
		}
		if len(val) == 0 {
			return ""
		}
		list := minifySources(d, val, opts)
		if len(list) == 0 {
			return ""
		}
		return string(d) + " " + sanitize(d, strings.Join(list, " "))
	}
	return ""
}

// sanitize blanks out separators that would split the header into
// unintended directives.
func sanitize(d Directive, value string) string {
	if !strings.ContainsAny(value, ";\n") {
		return value
	}
	gologger.Warning().Msgf("%s contains a separator in %q, replaced with a blank space", d, value)
	return strings.NewReplacer(";", " ", "\n", " ").Replace(value)
}

func hasOtherThan(list []string, s string) bool {
	for _, v := range list {
		if v != s {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
