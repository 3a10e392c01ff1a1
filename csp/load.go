package csp

import (
	"fmt"
	"strings"

	"github.com/secinto/secure-headers/headers"
)

// OptOutKeyword marks a whole policy, or a single directive, as opted out
// in map-based configuration.
const OptOutKeyword = "opt_out"

// Meta keys accepted next to directives by FromMap.
const (
	keyReportOnly      = "report_only"
	keyPreserveSchemes = "preserve_schemes"
	keyScriptNonce     = "script_nonce"
	keyStyleNonce      = "style_nonce"
)

// FromMap builds a policy from decoded configuration (YAML or JSON), keyed
// by directive name in either underscore or wire form. Values are converted
// by shape; whether a shape fits its directive is checked by Validate.
func FromMap(key headers.Key, m map[string]interface{}) (*Policy, error) {
	p := NewPolicy(nil)
	for k, raw := range m {
		switch strings.ToLower(k) {
		case keyReportOnly, "report-only":
			b, ok := raw.(bool)
			if !ok {
				return nil, headers.NewConfigError(key, "%s must be a boolean value", k)
			}
			p.SetReportOnly(b)
			continue
		case keyPreserveSchemes, "preserve-schemes":
			b, ok := raw.(bool)
			if !ok {
				return nil, headers.NewConfigError(key, "%s must be a boolean value", k)
			}
			p.SetPreserveSchemes(b)
			continue
		case keyScriptNonce, "script-nonce":
			p.SetScriptNonce(fmt.Sprint(raw))
			continue
		case keyStyleNonce, "style-nonce":
			p.SetStyleNonce(fmt.Sprint(raw))
			continue
		}

		d := Directive(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "_", "-"))
		if s, ok := raw.(string); ok && s == OptOutKeyword {
			continue
		}
		v, err := valueFrom(key, d, raw)
		if err != nil {
			return nil, err
		}
		p.directives[d] = v
	}
	p.modified = false
	return p, nil
}

func valueFrom(key headers.Key, d Directive, raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return Flag(v), nil
	case string:
		if Kind(d) == KindSourceList {
			return Sources(strings.Fields(v)), nil
		}
		return Text(v), nil
	case []string:
		return Sources(v).clone(), nil
	case []interface{}:
		out := make(Sources, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, headers.NewConfigError(key, "%s must be a list of strings, found %v", d, item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return Sources{}, nil
	}
	return nil, headers.NewConfigError(key, "%s has an unsupported value %v", d, raw)
}
