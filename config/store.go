package config

import (
	"net/http"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/secinto/secure-headers/csp"
)

const (
	// DefaultName is the name Default registers under.
	DefaultName = "default"
	// NoopName is the reserved configuration with every header opted out.
	NoopName = "secure_headers_noop_config"
)

// BuildFunc configures a Configuration during Default or Override.
type BuildFunc func(c *Configuration) error

// AppendFunc produces CSP additions for a request.
type AppendFunc func(r *http.Request) *csp.Policy

// Store is a registry of named frozen configurations. Registration is
// expected to happen during bootstrap; lookups are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	configs map[string]*Frozen
	appends map[string]AppendFunc
}

func NewStore() *Store {
	return &Store{
		configs: make(map[string]*Frozen),
		appends: make(map[string]AppendFunc),
	}
}

// Default builds the default configuration from the built-in settings and
// build, registers it and the no-op configuration. A nil build keeps the
// built-in settings.
func (s *Store) Default(build BuildFunc) (*Frozen, error) {
	c := New()
	if build != nil {
		if err := build(c); err != nil {
			return nil, err
		}
	}
	f, err := freeze(DefaultName, c)
	if err != nil {
		return nil, err
	}
	nf, err := freeze(NoopName, noop())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.configs[DefaultName] = f
	s.configs[NoopName] = nf
	s.mu.Unlock()
	gologger.Debug().Msgf("Registered configuration %s", DefaultName)
	return f, nil
}

// Override registers name as a copy of base changed by mutate. An empty
// base means the default configuration.
func (s *Store) Override(name, base string, mutate BuildFunc) (*Frozen, error) {
	if name == "" || name == DefaultName || name == NoopName {
		return nil, errors.Errorf("%q is not a valid override name", name)
	}
	if base == "" {
		base = DefaultName
	}
	b, err := s.Get(base)
	if err != nil {
		return nil, err
	}
	c := b.Dup()
	if mutate != nil {
		if err := mutate(c); err != nil {
			return nil, err
		}
	}
	f, err := freeze(name, c)
	if err != nil {
		return nil, errors.Wrapf(err, "override %s", name)
	}

	s.mu.Lock()
	s.configs[name] = f
	s.mu.Unlock()
	gologger.Debug().Msgf("Registered configuration %s based on %s", name, base)
	return f, nil
}

// Get returns a registered configuration. An empty name means the default.
func (s *Store) Get(name string) (*Frozen, error) {
	if name == "" {
		name = DefaultName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.configs) == 0 {
		return nil, errors.WithStack(&NotYetConfiguredError{})
	}
	f, ok := s.configs[name]
	if !ok {
		return nil, errors.WithStack(&NotYetConfiguredError{Name: name})
	}
	return f, nil
}

// Names lists the registered configurations.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.configs))
	for n := range s.configs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NamedAppend registers a producer of request-time CSP additions.
func (s *Store) NamedAppend(name string, fn AppendFunc) error {
	if name == "" || fn == nil {
		return errors.New("named append requires a name and a function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appends[name]; ok {
		return errors.Errorf("named append %q is already registered", name)
	}
	s.appends[name] = fn
	return nil
}

// NamedAppendFor returns a registered append producer.
func (s *Store) NamedAppendFor(name string) (AppendFunc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.appends[name]
	if !ok {
		return nil, errors.WithStack(&NotYetConfiguredError{Name: name})
	}
	return fn, nil
}
