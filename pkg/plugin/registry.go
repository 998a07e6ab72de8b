package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"
)

// Registry holds the plugins available to a host of one version.
type Registry struct {
	mu          sync.RWMutex
	plugins     map[string]Plugin
	hostVersion *semver.Version
}

// NewRegistry creates a registry for hostVersion. Versions that are not
// semver (development builds) accept every plugin.
func NewRegistry(hostVersion string) *Registry {
	r := &Registry{plugins: make(map[string]Plugin)}
	if v, err := semver.NewVersion(strings.TrimPrefix(hostVersion, "v")); err == nil {
		r.hostVersion = v
	} else {
		log.Debug().Str("component", "plugin").Str("version", hostVersion).Msg("host version is not semver, skipping compatibility checks")
	}
	return r
}

// Register adds p. Names are case-insensitive and unique.
func (r *Registry) Register(p Plugin) error {
	if p == nil || strings.TrimSpace(p.Name()) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPlugin)
	}
	if err := r.checkVersion(p); err != nil {
		return err
	}

	key := strings.ToLower(p.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[key]; exists {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, p.Name())
	}
	r.plugins[key] = p
	return nil
}

// MustRegister is Register for built-in plugins; it panics on error.
func (r *Registry) MustRegister(ps ...Plugin) {
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) checkVersion(p Plugin) error {
	v, ok := p.(Versioned)
	if !ok || v.MinHostVersion() == "" {
		return nil
	}
	min, err := semver.NewVersion(strings.TrimPrefix(v.MinHostVersion(), "v"))
	if err != nil {
		return fmt.Errorf("%w: %s: min host version %q: %v", ErrInvalidPlugin, p.Name(), v.MinHostVersion(), err)
	}
	if r.hostVersion != nil && r.hostVersion.LessThan(min) {
		return fmt.Errorf("%w: %s needs %s, host is %s", ErrIncompatibleHost, p.Name(), min, r.hostVersion)
	}
	return nil
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// List returns every plugin sorted by name.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
