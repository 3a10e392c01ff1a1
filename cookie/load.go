package cookie

import (
	"strings"

	"github.com/secinto/secure-headers/headers"
)

// FromMap builds a Config from decoded configuration:
//
//	secure: true
//	httponly: {except: [js_readable]}
//	samesite:
//	  strict: {only: [_session]}
//
// Attributes that are not mentioned are disabled, and so are maps without
// any cookie names.
func FromMap(m map[string]interface{}) (Config, error) {
	var c Config
	for k, raw := range m {
		var err error
		switch strings.ToLower(k) {
		case "secure":
			c.Secure, err = ruleFrom("secure", raw)
		case "httponly":
			c.HttpOnly, err = ruleFrom("httponly", raw)
		case "samesite":
			c.SameSite, err = sameSiteFrom(raw)
		default:
			err = headers.NewConfigError(headers.KeyCookies, "unknown cookie attribute %q", k)
		}
		if err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

func sameSiteFrom(raw interface{}) (SameSiteConfig, error) {
	var s SameSiteConfig
	m, ok := raw.(map[string]interface{})
	if !ok {
		return s, headers.NewConfigError(headers.KeyCookies, "samesite must be a map of lax, strict or none")
	}
	for k, v := range m {
		var err error
		switch strings.ToLower(k) {
		case "lax":
			s.Lax, err = ruleFrom("samesite lax", v)
		case "strict":
			s.Strict, err = ruleFrom("samesite strict", v)
		case "none":
			s.None, err = ruleFrom("samesite none", v)
		default:
			err = headers.NewConfigError(headers.KeyCookies, "unknown samesite value %q", k)
		}
		if err != nil {
			return s, err
		}
	}
	_, hasLax := m["lax"]
	_, hasStrict := m["strict"]
	if hasLax && hasStrict && (m["lax"] == true || m["strict"] == true) {
		return s, headers.NewConfigError(headers.KeyCookies, "samesite cookie config is invalid, combination use of booleans and Hash to configure lax and strict enforcement is not permitted")
	}
	return s, nil
}

func ruleFrom(attr string, raw interface{}) (Rule, error) {
	switch v := raw.(type) {
	case bool:
		return Rule{Enabled: v}, nil
	case map[string]interface{}:
		var r Rule
		for k, names := range v {
			list, err := namesFrom(attr, names)
			if err != nil {
				return Rule{}, err
			}
			switch k {
			case "only":
				r.Only = list
			case "except":
				r.Except = list
			default:
				return Rule{}, headers.NewConfigError(headers.KeyCookies, "%s accepts only `only` or `except`, got %q", attr, k)
			}
		}
		r.Enabled = len(r.Only) > 0 || len(r.Except) > 0
		return r, nil
	}
	return Rule{}, headers.NewConfigError(headers.KeyCookies, "%s must be a boolean or a map with `only` or `except`", attr)
}

func namesFrom(attr string, raw interface{}) ([]string, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, headers.NewConfigError(headers.KeyCookies, "%s names must be a list", attr)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, headers.NewConfigError(headers.KeyCookies, "%s names must be strings, found %v", attr, item)
		}
		out = append(out, s)
	}
	return out, nil
}
