package csp

import (
	"sort"
)

// Value is a directive value: Sources, Flag or Text.
type Value interface {
	Kind() ValueKind
	clone() Value
	equal(Value) bool
}

// Sources is an ordered source list. Tokens are kept as written and parsed
// only when the policy is rendered.
type Sources []string

// Flag is the value of a boolean directive.
type Flag bool

// Text is the value of a string directive.
type Text string

func (Sources) Kind() ValueKind { return KindSourceList }
func (Flag) Kind() ValueKind    { return KindBoolean }
func (Text) Kind() ValueKind    { return KindString }

func (s Sources) clone() Value {
	if s == nil {
		return Sources(nil)
	}
	return append(Sources(nil), s...)
}
func (f Flag) clone() Value { return f }
func (t Text) clone() Value { return t }

func (s Sources) equal(o Value) bool {
	os, ok := o.(Sources)
	if !ok || len(os) != len(s) {
		return false
	}
	for i := range s {
		if s[i] != os[i] {
			return false
		}
	}
	return true
}
func (f Flag) equal(o Value) bool { return o == Value(f) }
func (t Text) equal(o Value) bool { return o == Value(t) }

// Directives is the literal form used to build a Policy.
type Directives map[Directive]Value

// Policy is a CSP directive map plus its meta settings. The zero value is
// not usable; build one with NewPolicy or OptOut.
//
// Copy contract: Clone deep-copies the source lists and the directive map.
// Flags, strings and nonces are values and are copied by assignment.
type Policy struct {
	directives      map[Directive]Value
	reportOnly      *bool
	preserveSchemes *bool
	scriptNonce     string
	styleNonce      string
	modified        bool
	optOut          bool
}

// NewPolicy builds a policy from a directive literal. Values are copied.
// Nothing is validated here; see Validate.
func NewPolicy(d Directives) *Policy {
	p := &Policy{directives: make(map[Directive]Value, len(d))}
	for k, v := range d {
		if v != nil {
			p.directives[k] = v.clone()
		}
	}
	return p
}

// OptOut returns the opt-out sentinel: a policy that never renders and
// cannot be appended to.
func OptOut() *Policy {
	return &Policy{directives: map[Directive]Value{}, optOut: true}
}

// IsOptOut reports whether p is the opt-out sentinel.
func (p *Policy) IsOptOut() bool {
	return p == nil || p.optOut
}

// Get returns the value of d.
func (p *Policy) Get(d Directive) (Value, bool) {
	v, ok := p.directives[d]
	return v, ok
}

// Sources returns the source list of d, or nil when d is unset or not a list.
func (p *Policy) Sources(d Directive) Sources {
	s, _ := p.directives[d].(Sources)
	return s
}

// Set assigns d. A nil value deletes it. The modified flag is raised only
// when the stored value actually changes.
func (p *Policy) Set(d Directive, v Value) {
	if v == nil {
		p.Delete(d)
		return
	}
	if old, ok := p.directives[d]; ok && old.equal(v) {
		return
	}
	p.directives[d] = v.clone()
	p.modified = true
}

// Append adds sources to the list directive d.
func (p *Policy) Append(d Directive, sources ...string) {
	if len(sources) == 0 {
		return
	}
	cur := p.Sources(d)
	p.Set(d, append(append(Sources(nil), cur...), sources...))
}

func (p *Policy) Delete(d Directive) {
	if _, ok := p.directives[d]; ok {
		delete(p.directives, d)
		p.modified = true
	}
}

// Directives returns the set directives in alphabetical order.
func (p *Policy) Directives() []Directive {
	out := make([]Directive, 0, len(p.directives))
	for d := range p.directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of set directives.
func (p *Policy) Len() int {
	return len(p.directives)
}

func (p *Policy) ReportOnly() bool {
	return p.reportOnly != nil && *p.reportOnly
}

// ReportOnlySet reports whether report-only was given explicitly.
func (p *Policy) ReportOnlySet() bool {
	return p.reportOnly != nil
}

func (p *Policy) SetReportOnly(v bool) {
	if p.reportOnly != nil && *p.reportOnly == v {
		return
	}
	p.reportOnly = &v
	p.modified = true
}

func (p *Policy) PreserveSchemes() bool {
	return p.preserveSchemes != nil && *p.preserveSchemes
}

func (p *Policy) SetPreserveSchemes(v bool) {
	if p.preserveSchemes != nil && *p.preserveSchemes == v {
		return
	}
	p.preserveSchemes = &v
	p.modified = true
}

func (p *Policy) ScriptNonce() string { return p.scriptNonce }
func (p *Policy) StyleNonce() string  { return p.styleNonce }

func (p *Policy) SetScriptNonce(nonce string) {
	if p.scriptNonce != nonce {
		p.scriptNonce = nonce
		p.modified = true
	}
}

func (p *Policy) SetStyleNonce(nonce string) {
	if p.styleNonce != nonce {
		p.styleNonce = nonce
		p.modified = true
	}
}

// Modified reports whether any setter changed p since it was built or cloned.
func (p *Policy) Modified() bool {
	return p.modified
}

// Clone returns a deep copy of p with the modified flag cleared.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := &Policy{
		directives:  make(map[Directive]Value, len(p.directives)),
		scriptNonce: p.scriptNonce,
		styleNonce:  p.styleNonce,
		optOut:      p.optOut,
	}
	for d, v := range p.directives {
		c.directives[d] = v.clone()
	}
	if p.reportOnly != nil {
		v := *p.reportOnly
		c.reportOnly = &v
	}
	if p.preserveSchemes != nil {
		v := *p.preserveSchemes
		c.preserveSchemes = &v
	}
	return c
}

// Equal is value equality over directives, meta settings and nonces.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.optOut != o.optOut || p.ReportOnly() != o.ReportOnly() || p.PreserveSchemes() != o.PreserveSchemes() {
		return false
	}
	if p.scriptNonce != o.scriptNonce || p.styleNonce != o.styleNonce {
		return false
	}
	if len(p.directives) != len(o.directives) {
		return false
	}
	for d, v := range p.directives {
		ov, ok := o.directives[d]
		if !ok || !v.equal(ov) {
			return false
		}
	}
	return true
}

// DefaultPolicy returns the policy applied when nothing else is configured.
func DefaultPolicy() *Policy {
	return NewPolicy(Directives{
		DefaultSrc: Sources{Self, "https:"},
		FontSrc:    Sources{Self, "https:", DataScheme},
		ImgSrc:     Sources{Self, "https:", DataScheme},
		ObjectSrc:  Sources{None},
		ScriptSrc:  Sources{"https:"},
		StyleSrc:   Sources{Self, "https:", UnsafeInline},
	})
}
