package csp

// Variation is a browser family with its own set of supported directives.
type Variation string

const (
	Chrome              Variation = "Chrome"
	Firefox             Variation = "Firefox"
	FirefoxTransitional Variation = "FirefoxTransitional"
	Safari              Variation = "Safari"
	Edge                Variation = "Edge"
	Other               Variation = "Other"
)

// Variations lists every variation a configuration precomputes headers for.
var Variations = []Variation{Chrome, Firefox, FirefoxTransitional, Safari, Edge, Other}

var (
	firefoxUnsupported             = []Directive{BlockAllMixedContent, ChildSrc, PluginTypes}
	firefoxTransitionalUnsupported = []Directive{BlockAllMixedContent, PluginTypes, FrameSrc}

	supported = map[Variation][]Directive{
		Chrome:              ordered(allDirectives),
		Other:               ordered(allDirectives),
		Firefox:             ordered(without(allDirectives, firefoxUnsupported)),
		FirefoxTransitional: ordered(without(allDirectives, firefoxTransitionalUnsupported)),
		Safari:              ordered(append(append([]Directive(nil), directivesLevel1...), directivesLevel2...)),
		Edge:                ordered(directivesLevel1),
	}

	supportedSet = func() map[Variation]map[Directive]bool {
		m := make(map[Variation]map[Directive]bool, len(supported))
		for v, list := range supported {
			set := make(map[Directive]bool, len(list))
			for _, d := range list {
				set[d] = true
			}
			m[v] = set
		}
		return m
	}()
)

// SupportedDirectives returns the directives v understands: default-src
// first, report-uri last, everything else alphabetically in between.
// Unknown variations are treated as Other.
func SupportedDirectives(v Variation) []Directive {
	list, ok := supported[v]
	if !ok {
		list = supported[Other]
	}
	return append([]Directive(nil), list...)
}

// Supports reports whether v understands d.
func Supports(v Variation, d Directive) bool {
	set, ok := supportedSet[v]
	if !ok {
		set = supportedSet[Other]
	}
	return set[d]
}

// NoncesSupported reports whether v honours 'nonce-' sources.
func NoncesSupported(v Variation) bool {
	switch v {
	case Chrome, Firefox, FirefoxTransitional, Safari:
		return true
	}
	return false
}

// ordered sorts a directive list into rendering order.
func ordered(list []Directive) []Directive {
	set := make(map[Directive]bool, len(list))
	for _, d := range list {
		set[d] = true
	}
	out := make([]Directive, 0, len(list))
	if set[DefaultSrc] {
		out = append(out, DefaultSrc)
	}
	for _, d := range allDirectives {
		if d != DefaultSrc && d != ReportURI && set[d] {
			out = append(out, d)
		}
	}
	if set[ReportURI] {
		out = append(out, ReportURI)
	}
	return out
}

func without(list, drop []Directive) []Directive {
	skip := make(map[Directive]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var out []Directive
	for _, d := range list {
		if !skip[d] {
			out = append(out, d)
		}
	}
	return out
}
