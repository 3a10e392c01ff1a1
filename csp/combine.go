package csp

import (
	"github.com/secinto/secure-headers/headers"
)

// CombinePolicies merges additions into a copy of original.
//
// Fetch directives that additions introduce, and script-src/style-src when
// additions carry a nonce, start from original's default-src. Source lists
// are concatenated and deduplicated; flags, strings, nonces and meta
// settings from additions win. Directives that end up empty are dropped.
func CombinePolicies(original, additions *Policy) (*Policy, error) {
	if original.IsOptOut() {
		return nil, headers.NewConfigError(headers.KeyCSP, "attempted to append to an opted-out policy")
	}
	out := original.Clone()
	if additions == nil || additions.IsOptOut() {
		return out, nil
	}

	backfill := func(d Directive) {
		if _, ok := out.directives[d]; ok {
			return
		}
		if def, ok := out.directives[DefaultSrc]; ok {
			out.directives[d] = def.clone()
		}
	}
	for d := range additions.directives {
		if IsFetchSource(d) {
			backfill(d)
		}
	}
	if additions.scriptNonce != "" {
		backfill(ScriptSrc)
	}
	if additions.styleNonce != "" {
		backfill(StyleSrc)
	}

	for d, v := range additions.directives {
		lhs, ok := out.directives[d].(Sources)
		rhs, isList := v.(Sources)
		if ok && isList {
			out.directives[d] = mergeSources(lhs, rhs)
			continue
		}
		out.directives[d] = v.clone()
	}

	for d, v := range out.directives {
		if s, ok := v.(Sources); ok && len(s) == 0 && d != Sandbox {
			delete(out.directives, d)
		}
	}

	if additions.reportOnly != nil {
		v := *additions.reportOnly
		out.reportOnly = &v
	}
	if additions.preserveSchemes != nil {
		v := *additions.preserveSchemes
		out.preserveSchemes = &v
	}
	if additions.scriptNonce != "" {
		out.scriptNonce = additions.scriptNonce
	}
	if additions.styleNonce != "" {
		out.styleNonce = additions.styleNonce
	}
	return out, nil
}

// IdempotentAdditions reports whether combining additions into original
// leaves it unchanged.
func IdempotentAdditions(original, additions *Policy) bool {
	if original.IsOptOut() {
		return false
	}
	combined, err := CombinePolicies(original, additions)
	if err != nil {
		return false
	}
	return combined.Equal(original)
}

func mergeSources(lhs, rhs Sources) Sources {
	out := make(Sources, 0, len(lhs)+len(rhs))
	seen := make(map[string]bool, len(lhs)+len(rhs))
	for _, list := range []Sources{lhs, rhs} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// OverridePolicies replaces, in a copy of original, every directive that
// replacements sets. Meta settings and nonces from replacements win. An
// opted-out original is replaced as if it were empty.
func OverridePolicies(original, replacements *Policy) *Policy {
	var out *Policy
	if original.IsOptOut() {
		out = NewPolicy(nil)
	} else {
		out = original.Clone()
	}
	if replacements == nil || replacements.IsOptOut() {
		return out
	}
	for d, v := range replacements.directives {
		out.directives[d] = v.clone()
	}
	if replacements.reportOnly != nil {
		v := *replacements.reportOnly
		out.reportOnly = &v
	}
	if replacements.preserveSchemes != nil {
		v := *replacements.preserveSchemes
		out.preserveSchemes = &v
	}
	if replacements.scriptNonce != "" {
		out.scriptNonce = replacements.scriptNonce
	}
	if replacements.styleNonce != "" {
		out.styleNonce = replacements.styleNonce
	}
	return out
}
