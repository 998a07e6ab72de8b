package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registration describes one registered session type.
type Registration struct {
	Type        Type
	Description string
	Factory     Factory
}

// Registry is a checked table of session types. Registering the same
// (major, minor) pair twice fails instead of replacing the earlier entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[Type]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Type]Registration)}
}

// Register declares a (major, minor, factory) triple.
func (r *Registry) Register(major MajorType, minor string, factory Factory, description string) error {
	major, err := ParseMajorType(string(major))
	if err != nil {
		return err
	}
	minor = strings.ToUpper(strings.TrimSpace(minor))
	if minor == "" {
		return fmt.Errorf("%w: empty subtype", ErrInvalidType)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %s/%s", ErrInvalidType, major, minor)
	}

	t := Type{Major: major, Minor: minor}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t)
	}
	r.entries[t] = Registration{Type: t, Description: description, Factory: factory}
	return nil
}

// Lookup returns the registration for (major, minor).
func (r *Registry) Lookup(major MajorType, minor string) (Registration, error) {
	t := Type{Major: MajorType(strings.ToUpper(string(major))), Minor: strings.ToUpper(strings.TrimSpace(minor))}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[t]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return reg, nil
}

// Types returns the registrations of a category sorted by subtype. An empty
// major returns every registration sorted by category then subtype.
func (r *Registry) Types(major MajorType) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.entries))
	for t, reg := range r.entries {
		if major == "" || t.Major == major {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type.Major != out[j].Type.Major {
			return out[i].Type.Major < out[j].Type.Major
		}
		return out[i].Type.Minor < out[j].Type.Minor
	})
	return out
}
