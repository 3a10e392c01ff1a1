package hashes

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"gopkg.in/yaml.v3"

	"github.com/secinto/secure-headers/csp"
)

// EnvHashesFile names the environment variable holding the hashes file path.
const EnvHashesFile = "SECURE_HEADERS_HASHES_FILE"

// DefaultExtensions are the template extensions GenerateDir looks at.
var DefaultExtensions = []string{".html", ".htm", ".tmpl", ".gohtml"}

// Hashes maps template names to the hash sources of their inline elements.
type Hashes struct {
	Scripts map[string][]string `yaml:"scripts,omitempty"`
	Styles  map[string][]string `yaml:"styles,omitempty"`
}

func New() *Hashes {
	return &Hashes{Scripts: map[string][]string{}, Styles: map[string][]string{}}
}

// Add records the hashes of a template.
func (h *Hashes) Add(template string, res Result) {
	if len(res.Scripts) > 0 {
		h.Scripts[template] = res.Scripts
	}
	if len(res.Styles) > 0 {
		h.Styles[template] = res.Styles
	}
}

// Templates lists every template with at least one hash.
func (h *Hashes) Templates() []string {
	seen := map[string]bool{}
	for t := range h.Scripts {
		seen[t] = true
	}
	for t := range h.Styles {
		seen[t] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Additions returns the policy additions allowing the inline elements of
// template, or nil when it has none. The result is meant for
// request.AppendDirectives.
func (h *Hashes) Additions(template string) *csp.Policy {
	if h == nil {
		return nil
	}
	scripts, styles := h.Scripts[template], h.Styles[template]
	if len(scripts) == 0 && len(styles) == 0 {
		return nil
	}
	d := csp.Directives{}
	if len(scripts) > 0 {
		d[csp.ScriptSrc] = csp.Sources(append([]string(nil), scripts...))
	}
	if len(styles) > 0 {
		d[csp.StyleSrc] = csp.Sources(append([]string(nil), styles...))
	}
	return csp.NewPolicy(d)
}

// GenerateDir hashes every template below dir whose extension is in exts.
// Template names are slash separated paths relative to dir.
func GenerateDir(dir string, exts []string) (*Hashes, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	h := New()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(path, exts) {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		res, err := Generate(f)
		if err != nil {
			return errors.Wrapf(err, "could not hash %s", path)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		for _, w := range res.Warnings {
			gologger.Warning().Msgf("%s: %s", name, w)
		}
		h.Add(name, res)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not generate hashes for %s", dir)
	}
	return h, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads a hashes file.
func Load(location string) (*Hashes, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, errors.Wrap(err, "could not read hashes file")
	}
	h := New()
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, errors.Wrapf(err, "could not parse hashes file %s", location)
	}
	if h.Scripts == nil {
		h.Scripts = map[string][]string{}
	}
	if h.Styles == nil {
		h.Styles = map[string][]string{}
	}
	return h, nil
}

// LoadFromEnv loads the file named by SECURE_HEADERS_HASHES_FILE, or returns
// an empty set when it is unset.
func LoadFromEnv() (*Hashes, error) {
	location := os.Getenv(EnvHashesFile)
	if location == "" {
		return New(), nil
	}
	return Load(location)
}

// Write stores h as YAML.
func (h *Hashes) Write(location string) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "could not encode hashes")
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return errors.Wrapf(err, "could not write hashes file %s", location)
	}
	return nil
}
