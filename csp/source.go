package csp

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// SourceExpression is one token of a source-list directive.
type SourceExpression interface {
	String() string
	// MatchesSameOrSuperset reports whether every URL matched by other is
	// also matched by the receiver. False negatives are acceptable, false
	// positives are not.
	MatchesSameOrSuperset(other SourceExpression) bool
}

// QuotedExpression is a keyword, nonce or hash source such as 'self'.
type QuotedExpression struct {
	Value string
}

func (q QuotedExpression) String() string {
	return "'" + q.Value + "'"
}

func (q QuotedExpression) MatchesSameOrSuperset(other SourceExpression) bool {
	o, ok := other.(QuotedExpression)
	return ok && o.Value == q.Value
}

// SchemeExpression is a scheme-only source such as data: or https:.
type SchemeExpression struct {
	Scheme string
}

func (s SchemeExpression) String() string {
	return s.Scheme + ":"
}

func (s SchemeExpression) MatchesSameOrSuperset(other SourceExpression) bool {
	switch o := other.(type) {
	case SchemeExpression:
		return strings.EqualFold(o.Scheme, s.Scheme)
	case HostExpression:
		return o.parsed && o.Scheme != "" && strings.EqualFold(o.Scheme, s.Scheme)
	}
	return false
}

// PathEndpoint is an absolute path, used by reporting directives.
type PathEndpoint struct {
	Path string
}

func (p PathEndpoint) String() string {
	return p.Path
}

func (p PathEndpoint) MatchesSameOrSuperset(other SourceExpression) bool {
	o, ok := other.(PathEndpoint)
	return ok && o.Path == p.Path
}

// HostExpression is a host source: [scheme://]host-pattern[:port][/path].
// Tokens the grammar cannot make sense of are kept verbatim with only Host set.
type HostExpression struct {
	Scheme string
	Host   string
	Port   string
	Path   string

	raw    string
	parsed bool
}

func (h HostExpression) String() string {
	if h.raw != "" {
		return h.raw
	}
	var b strings.Builder
	if h.Scheme != "" {
		b.WriteString(h.Scheme)
		b.WriteString("://")
	}
	b.WriteString(h.Host)
	if h.Port != "" {
		b.WriteByte(':')
		b.WriteString(h.Port)
	}
	b.WriteString(h.Path)
	return b.String()
}

// Wildcard reports whether the host pattern starts with '*'.
func (h HostExpression) Wildcard() bool {
	return h.parsed && strings.HasPrefix(h.Host, "*")
}

func (h HostExpression) MatchesSameOrSuperset(other SourceExpression) bool {
	o, ok := other.(HostExpression)
	if !ok {
		return false
	}
	if !h.parsed || !o.parsed {
		return h.String() == o.String()
	}
	if !strings.EqualFold(h.Scheme, o.Scheme) {
		return false
	}
	if !hostCovers(h.Host, o.Host) {
		return false
	}
	if h.Port != "*" && h.Port != o.Port {
		return false
	}
	if h.Path == "" || h.Path == o.Path {
		return true
	}
	return strings.HasSuffix(h.Path, "/") && strings.HasPrefix(o.Path, h.Path)
}

// hostCovers matches host against pattern. Only a leading '*' is treated as
// a wildcard; everything after it is matched literally.
func hostCovers(pattern, host string) bool {
	pattern, host = strings.ToLower(pattern), strings.ToLower(host)
	if pattern == host {
		return true
	}
	if !strings.HasPrefix(pattern, "*") {
		return false
	}
	g, err := glob.Compile("*" + glob.QuoteMeta(pattern[1:]))
	if err != nil {
		return false
	}
	return g.Match(host)
}

var (
	quotedSource = regexp.MustCompile(`^'([^']*)'$`)
	schemeSource = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.\-]*):$`)
	hostSource   = regexp.MustCompile(`^(?:([a-zA-Z][a-zA-Z0-9+.\-]*)://)?(\*|(?:\*\.)?[a-zA-Z0-9\-]+(?:\.[a-zA-Z0-9\-]+)*\.?)(?::(\d+|\*))?(/[^?#]*)?$`)
)

// ParseSource classifies a token. It never fails: anything that is not a
// quoted, scheme or path source becomes a HostExpression.
func ParseSource(token string) SourceExpression {
	if m := quotedSource.FindStringSubmatch(token); m != nil {
		return QuotedExpression{Value: m[1]}
	}
	if m := schemeSource.FindStringSubmatch(token); m != nil {
		return SchemeExpression{Scheme: m[1]}
	}
	if strings.HasPrefix(token, "/") {
		return PathEndpoint{Path: token}
	}
	if m := hostSource.FindStringSubmatch(token); m != nil {
		return HostExpression{
			Scheme: m[1],
			Host:   m[2],
			Port:   m[3],
			Path:   m[4],
			raw:    token,
			parsed: true,
		}
	}
	return HostExpression{Host: token, raw: token}
}
