package csp

import (
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/secinto/secure-headers/headers"
)

const (
	HeaderName           = "Content-Security-Policy"
	HeaderNameReportOnly = "Content-Security-Policy-Report-Only"
)

// Render builds the header for p as understood by browsers of variation v.
// An opted-out policy renders to the zero Header.
func Render(p *Policy, v Variation) (headers.Header, error) {
	if p.IsOptOut() {
		return headers.Header{}, nil
	}
	if _, ok := p.directives[DefaultSrc]; !ok {
		return headers.Header{}, headers.NewConfigError(headers.KeyCSP, "default-src is required")
	}

	name := HeaderName
	if p.ReportOnly() {
		name = HeaderNameReportOnly
	}
	return headers.Header{Name: name, Value: renderValue(p, v)}, nil
}

// RenderForUserAgent resolves the variation of userAgent and renders p for it.
func RenderForUserAgent(p *Policy, userAgent string) (headers.Header, error) {
	return Render(p, VariationFor(userAgent))
}

func renderValue(p *Policy, v Variation) string {
	supported := SupportedDirectives(v)
	nonces := NoncesSupported(v)
	childFrame := normalizeChildFrame(p, Supports(v, ChildSrc))

	segments := make([]string, 0, len(supported))
	for _, d := range supported {
		val, ok := p.directives[d]
		switch d {
		case ChildSrc:
			val, ok = childFrame, childFrame != nil
		case FrameSrc:
			if Supports(v, ChildSrc) {
				continue
			}
			val, ok = childFrame, childFrame != nil
		}
		if !ok {
			continue
		}

		opts := minifyOptions{preserveSchemes: p.PreserveSchemes(), noncesSupported: nonces}
		switch d {
		case ScriptSrc:
			opts.nonce = p.scriptNonce
		case StyleSrc:
			opts.nonce = p.styleNonce
		}
		if seg := renderDirective(d, val, opts); seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "; ") + ";"
}

// normalizeChildFrame picks the value shared by child-src and frame-src.
// Browsers that know child-src get child-src (falling back to frame-src);
// the others get frame-src (falling back to child-src).
func normalizeChildFrame(p *Policy, childSupported bool) Value {
	child, hasChild := p.directives[ChildSrc]
	frame, hasFrame := p.directives[FrameSrc]
	if hasChild && hasFrame && !child.equal(frame) {
		gologger.Warning().Msgf("child-src and frame-src are both set and differ, browsers will behave inconsistently")
	}
	if childSupported {
		if hasChild {
			return child
		}
		if hasFrame {
			return frame
		}
		return nil
	}
	if hasFrame {
		return frame
	}
	if hasChild {
		return child
	}
	return nil
}
