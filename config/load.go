package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"gopkg.in/yaml.v3"

	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
)

// EnvConfigFile names the environment variable holding the settings file path.
const EnvConfigFile = "SECURE_HEADERS_CONFIG"

// File is the YAML layout of a settings file.
//
//	default:
//	  csp:
//	    default_src: ["'self'"]
//	  x_frame_options: deny
//	  referrer_policy: opt_out
//	overrides:
//	  - name: api
//	    headers:
//	      csp: opt_out
type File struct {
	Default   map[string]yaml.Node `yaml:"default"`
	Overrides []OverrideSettings   `yaml:"overrides"`
}

// OverrideSettings describes a named override inside a settings file.
type OverrideSettings struct {
	Name    string               `yaml:"name"`
	Base    string               `yaml:"base"`
	Headers map[string]yaml.Node `yaml:"headers"`
}

// LoadFile reads a settings file and registers its default and overrides in s.
func LoadFile(s *Store, location string) error {
	data, err := os.ReadFile(location)
	if err != nil {
		return errors.Wrap(err, "could not read settings file")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(err, "could not parse settings file %s", location)
	}
	if _, err := s.Default(Apply(f.Default)); err != nil {
		return err
	}
	for _, o := range f.Overrides {
		if _, err := s.Override(o.Name, o.Base, Apply(o.Headers)); err != nil {
			return err
		}
	}
	gologger.Debug().Msgf("Loaded %d configuration(s) from %s", len(f.Overrides)+1, location)
	return nil
}

// LoadFromEnv loads the file named by SECURE_HEADERS_CONFIG. Without it the
// store gets the built-in default.
func LoadFromEnv(s *Store) error {
	if location := os.Getenv(EnvConfigFile); location != "" {
		return LoadFile(s, location)
	}
	_, err := s.Default(nil)
	return err
}

// Apply returns a BuildFunc that applies decoded header settings keyed by
// header key. csp is applied before csp_report_only.
func Apply(settings map[string]yaml.Node) BuildFunc {
	return func(c *Configuration) error {
		byKey := make(map[headers.Key]yaml.Node, len(settings))
		for name, node := range settings {
			k, ok := headers.ParseKey(name)
			if !ok {
				return errors.Errorf("unknown header setting %q", name)
			}
			byKey[k] = node
		}
		order := append([]headers.Key{headers.KeyCSP, headers.KeyCSPReportOnly}, headers.Keys...)
		order = append(order, headers.KeyCookies)
		done := make(map[headers.Key]bool, len(order))
		for _, k := range order {
			node, ok := byKey[k]
			if !ok || done[k] {
				continue
			}
			done[k] = true
			if err := applyKey(c, k, &node); err != nil {
				return err
			}
		}
		return nil
	}
}

func applyKey(c *Configuration, k headers.Key, node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return errors.Wrapf(err, "could not decode %s", k)
	}
	if optedOut(raw) {
		c.OptOut(k)
		return nil
	}

	switch k {
	case headers.KeyCSP, headers.KeyCSPReportOnly:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return headers.NewConfigError(k, "must be a map of directives or %s", csp.OptOutKeyword)
		}
		p, err := csp.FromMap(k, m)
		if err != nil {
			return err
		}
		if k == headers.KeyCSP {
			return c.SetCSP(p)
		}
		return c.SetCSPReportOnly(p)
	case headers.KeyCookies:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return headers.NewConfigError(k, "must be a map of cookie attributes or %s", csp.OptOutKeyword)
		}
		cc, err := cookie.FromMap(m)
		if err != nil {
			return err
		}
		c.SetCookies(cc)
		return nil
	case headers.KeyClearSiteData:
		v := headers.ClearSiteData{}
		switch t := raw.(type) {
		case bool:
		case []interface{}:
			for _, item := range t {
				s, _ := item.(string)
				v.Types = append(v.Types, s)
			}
		default:
			if err := node.Decode(&v); err != nil {
				return errors.Wrapf(err, "could not decode %s", k)
			}
		}
		c.SetClearSiteData(v)
		return nil
	case headers.KeyExpectCT:
		var v headers.ExpectCT
		if err := node.Decode(&v); err != nil {
			return errors.Wrapf(err, "could not decode %s", k)
		}
		c.SetExpectCT(&v)
		return nil
	case headers.KeyHPKP:
		var v headers.PublicKeyPins
		if err := node.Decode(&v); err != nil {
			return errors.Wrapf(err, "could not decode %s", k)
		}
		c.SetHPKP(&v)
		return nil
	}

	s, ok := raw.(string)
	if !ok {
		return headers.NewConfigError(k, "must be a string or %s", csp.OptOutKeyword)
	}
	return c.Set(k, headers.Value(s))
}

func optedOut(raw interface{}) bool {
	switch v := raw.(type) {
	case string:
		return strings.EqualFold(v, csp.OptOutKeyword)
	case bool:
		return !v
	case nil:
		return true
	}
	return false
}
