// Package csp models Content-Security-Policy directives and policies: the
// directive catalog, source-expression parsing, source-list minification,
// policy combination and per-browser rendering.
package csp

import (
	"sort"
	"strings"
)

// Directive is a CSP directive, named by its wire form (e.g. "default-src").
type Directive string

// CSP level 1 directives.
const (
	DefaultSrc Directive = "default-src"
	ConnectSrc Directive = "connect-src"
	FontSrc    Directive = "font-src"
	FrameSrc   Directive = "frame-src"
	ImgSrc     Directive = "img-src"
	MediaSrc   Directive = "media-src"
	ObjectSrc  Directive = "object-src"
	Sandbox    Directive = "sandbox"
	ScriptSrc  Directive = "script-src"
	StyleSrc   Directive = "style-src"
	ReportURI  Directive = "report-uri"
)

// CSP level 2 directives.
const (
	BaseURI        Directive = "base-uri"
	ChildSrc       Directive = "child-src"
	FormAction     Directive = "form-action"
	FrameAncestors Directive = "frame-ancestors"
	PluginTypes    Directive = "plugin-types"
)

// CSP level 3 directives.
const (
	BlockAllMixedContent    Directive = "block-all-mixed-content"
	ManifestSrc             Directive = "manifest-src"
	NavigateTo              Directive = "navigate-to"
	PrefetchSrc             Directive = "prefetch-src"
	ReportTo                Directive = "report-to"
	RequireSRIFor           Directive = "require-sri-for"
	ScriptSrcAttr           Directive = "script-src-attr"
	ScriptSrcElem           Directive = "script-src-elem"
	StyleSrcAttr            Directive = "style-src-attr"
	StyleSrcElem            Directive = "style-src-elem"
	UpgradeInsecureRequests Directive = "upgrade-insecure-requests"
	WorkerSrc               Directive = "worker-src"
)

// Keyword and scheme sources.
const (
	Self          = "'self'"
	None          = "'none'"
	Star          = "*"
	UnsafeInline  = "'unsafe-inline'"
	UnsafeEval    = "'unsafe-eval'"
	StrictDynamic = "'strict-dynamic'"
	DataScheme    = "data:"
	BlobScheme    = "blob:"
)

// ValueKind is the shape of a directive's value.
type ValueKind int

const (
	KindSourceList ValueKind = iota
	KindBoolean
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	default:
		return "source list"
	}
}

// Level is the CSP specification generation that introduced a directive.
type Level int

const (
	Level1 Level = iota + 1
	Level2
	Level3
)

var (
	directivesLevel1 = []Directive{DefaultSrc, ConnectSrc, FontSrc, FrameSrc, ImgSrc, MediaSrc, ObjectSrc, Sandbox, ScriptSrc, StyleSrc, ReportURI}
	directivesLevel2 = []Directive{BaseURI, ChildSrc, FormAction, FrameAncestors, PluginTypes}
	directivesLevel3 = []Directive{
		BlockAllMixedContent, ManifestSrc, NavigateTo, PrefetchSrc, ReportTo, RequireSRIFor,
		ScriptSrcAttr, ScriptSrcElem, StyleSrcAttr, StyleSrcElem, UpgradeInsecureRequests, WorkerSrc,
	}

	valueKinds = map[Directive]ValueKind{
		BlockAllMixedContent:    KindBoolean,
		UpgradeInsecureRequests: KindBoolean,
		ReportTo:                KindString,
	}

	fetchSources = map[Directive]bool{
		ChildSrc:      true,
		ConnectSrc:    true,
		FontSrc:       true,
		FrameSrc:      true,
		ImgSrc:        true,
		ManifestSrc:   true,
		MediaSrc:      true,
		ObjectSrc:     true,
		PrefetchSrc:   true,
		ScriptSrc:     true,
		ScriptSrcAttr: true,
		ScriptSrcElem: true,
		StyleSrc:      true,
		StyleSrcAttr:  true,
		StyleSrcElem:  true,
		WorkerSrc:     true,
	}

	levels = func() map[Directive]Level {
		m := make(map[Directive]Level)
		for _, d := range directivesLevel1 {
			m[d] = Level1
		}
		for _, d := range directivesLevel2 {
			m[d] = Level2
		}
		for _, d := range directivesLevel3 {
			m[d] = Level3
		}
		return m
	}()

	// allDirectives is sorted alphabetically.
	allDirectives = func() []Directive {
		all := make([]Directive, 0, len(levels))
		for d := range levels {
			all = append(all, d)
		}
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		return all
	}()
)

// AllDirectives returns every known directive in alphabetical order.
func AllDirectives() []Directive {
	return append([]Directive(nil), allDirectives...)
}

// Known reports whether d is in the catalog.
func Known(d Directive) bool {
	_, ok := levels[d]
	return ok
}

// Kind returns the value kind of d. Unknown directives are source lists.
func Kind(d Directive) ValueKind {
	if k, ok := valueKinds[d]; ok {
		return k
	}
	return KindSourceList
}

// LevelOf returns the CSP generation that introduced d, or 0 if d is unknown.
func LevelOf(d Directive) Level {
	return levels[d]
}

// IsFetchSource reports whether d falls back to default-src in browsers.
func IsFetchSource(d Directive) bool {
	return fetchSources[d]
}

// ParseDirective resolves a directive from its wire name or its
// underscore form ("script_src").
func ParseDirective(s string) (Directive, bool) {
	d := Directive(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !Known(d) {
		return "", false
	}
	return d, true
}
