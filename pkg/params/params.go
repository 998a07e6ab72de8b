// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package params implements the typed, named configuration values attached
// to every console session.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

var (
	// ErrUnknownParameter is returned for names not declared on the collection.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrInvalidValue is returned when a value cannot be coerced to the declared kind.
	ErrInvalidValue = errors.New("invalid parameter value")

	// ErrMissingRequired is returned by Validate when a required parameter is unset.
	ErrMissingRequired = errors.New("required parameter not set")

	// ErrDuplicateParameter is returned when a name is declared twice.
	ErrDuplicateParameter = errors.New("duplicate parameter")
)

// Kind is the declared type of a parameter.
type Kind string

const (
	KindString     Kind = "string"
	KindStringList Kind = "strlist"
	KindInt        Kind = "int"
	KindBool       Kind = "bool"
	KindDuration   Kind = "duration"
)

// Coerce converts v to the Go type backing k. Strings are parsed the way a
// user types them on the console: comma separated lists, "1"/"True" booleans,
// base 10 integers, and bare integers as seconds for durations.
func (k Kind) Coerce(v any) (any, error) {
	switch k {
	case KindString:
		return cast.ToStringE(v)
	case KindStringList:
		if s, ok := v.(string); ok {
			return splitList(s), nil
		}
		return cast.ToStringSliceE(v)
	case KindInt:
		if s, ok := v.(string); ok {
			return strconv.Atoi(strings.TrimSpace(s))
		}
		return cast.ToIntE(v)
	case KindBool:
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		return cast.ToBoolE(v)
	case KindDuration:
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if n, err := strconv.Atoi(s); err == nil {
				return time.Duration(n) * time.Second, nil
			}
			return time.ParseDuration(s)
		}
		return cast.ToDurationE(v)
	default:
		return nil, fmt.Errorf("unsupported parameter kind %q", k)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Parameter is one named configuration value.
type Parameter struct {
	Name        string
	Kind        Kind
	Description string
	Default     any
	Required    bool
	Advanced    bool

	value any
	set   bool
}

// New declares a parameter.
func New(name string, kind Kind, description string, def any) *Parameter {
	return &Parameter{Name: name, Kind: kind, Description: description, Default: def}
}

// AsRequired marks the parameter as required.
func (p *Parameter) AsRequired() *Parameter {
	p.Required = true
	return p
}

// AsAdvanced hides the parameter from the default listing.
func (p *Parameter) AsAdvanced() *Parameter {
	p.Advanced = true
	return p
}

// Value returns the current value, falling back to the default.
func (p *Parameter) Value() any {
	if p.set {
		return p.value
	}
	if p.Default == nil {
		return nil
	}
	v, err := p.Kind.Coerce(p.Default)
	if err != nil {
		return p.Default
	}
	return v
}

// IsSet reports whether a value was explicitly assigned.
func (p *Parameter) IsSet() bool { return p.set }

func (p *Parameter) clone() *Parameter {
	out := *p
	if l, ok := p.value.([]string); ok {
		out.value = slices.Clone(l)
	}
	return &out
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	}
	return false
}

// Collection is an ordered set of parameters. It is safe for concurrent use.
type Collection struct {
	mu     sync.RWMutex
	order  []string
	params map[string]*Parameter
}

// NewCollection builds a collection from the given declarations. It panics on
// duplicate names since declarations are static.
func NewCollection(ps ...*Parameter) *Collection {
	c := &Collection{params: make(map[string]*Parameter)}
	if err := c.Add(ps...); err != nil {
		panic(err)
	}
	return c
}

// Add declares more parameters.
func (c *Collection) Add(ps ...*Parameter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range ps {
		if _, exists := c.params[p.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, p.Name)
		}
		c.params[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return nil
}

// Has reports whether name is declared.
func (c *Collection) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.params[name]
	return ok
}

// Names returns the declared names in declaration order.
func (c *Collection) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Set assigns a value typed on the console. The previous value is kept when
// coercion fails.
func (c *Collection) Set(name, text string) error {
	return c.SetValue(name, text)
}

// SetValue assigns any value coercible to the declared kind.
func (c *Collection) SetValue(name string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.params[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	coerced, err := p.Kind.Coerce(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%v (%s): %v", ErrInvalidValue, name, v, p.Kind, err)
	}
	p.value = coerced
	p.set = true
	return nil
}

// Reset drops an explicitly assigned value so the default applies again.
func (c *Collection) Reset(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.params[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	p.value, p.set = nil, false
	return nil
}

// Get returns the current value of name.
func (c *Collection) Get(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return p.Value(), nil
}

// Parameter returns a copy of the declaration and current state.
func (c *Collection) Parameter(name string) (*Parameter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.params[name]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// String returns name as a string; missing or unset yields "".
func (c *Collection) String(name string) string {
	v, _ := c.Get(name)
	return cast.ToString(v)
}

// StringList returns name as a string slice.
func (c *Collection) StringList(name string) []string {
	v, _ := c.Get(name)
	if v == nil {
		return nil
	}
	return cast.ToStringSlice(v)
}

// Int returns name as an int.
func (c *Collection) Int(name string) int {
	v, _ := c.Get(name)
	return cast.ToInt(v)
}

// Bool returns name as a bool.
func (c *Collection) Bool(name string) bool {
	v, _ := c.Get(name)
	return cast.ToBool(v)
}

// Duration returns name as a duration.
func (c *Collection) Duration(name string) time.Duration {
	v, _ := c.Get(name)
	return cast.ToDuration(v)
}

// Validate checks that every required parameter carries a non-empty value.
func (c *Collection) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []string
	for _, name := range c.order {
		p := c.params[name]
		if p.Required && isEmpty(p.Value()) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	return nil
}

// Flatten returns the plain name to value mapping, defaults applied.
func (c *Collection) Flatten() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.params))
	for _, name := range c.order {
		v := c.params[name].Value()
		if l, ok := v.([]string); ok {
			v = slices.Clone(l)
		}
		out[name] = v
	}
	return out
}

// Clone returns an independent snapshot of declarations and values.
func (c *Collection) Clone() *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Collection{params: make(map[string]*Parameter, len(c.params)), order: slices.Clone(c.order)}
	for name, p := range c.params {
		out.params[name] = p.clone()
	}
	return out
}

// Merge declares the parameters of other that c does not have yet and copies
// values other has explicitly set.
func (c *Collection) Merge(other *Collection) error {
	if other == nil {
		return nil
	}
	snap := other.Clone()
	for _, name := range snap.order {
		p := snap.params[name]
		if !c.Has(name) {
			if err := c.Add(p); err != nil {
				return err
			}
			continue
		}
		if p.set {
			if err := c.SetValue(name, p.value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load applies values from a flattened mapping. Unknown names are skipped
// and reported.
func (c *Collection) Load(values map[string]any) (skipped []string, err error) {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if !c.Has(name) {
			skipped = append(skipped, name)
			continue
		}
		if values[name] == nil {
			continue
		}
		if err := c.SetValue(name, values[name]); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// Rows renders the collection for tabular display.
func (c *Collection) Rows(includeAdvanced bool) [][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([][]string, 0, len(c.order))
	for _, name := range c.order {
		p := c.params[name]
		if p.Advanced && !includeAdvanced {
			continue
		}
		req := ""
		if p.Required {
			req = "yes"
		}
		rows = append(rows, []string{name, formatValue(p.Value()), string(p.Kind), req, p.Description})
	}
	return rows
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, ",")
	case time.Duration:
		return x.String()
	default:
		return cast.ToString(x)
	}
}

// MarshalJSON encodes the flattened mapping.
func (c *Collection) MarshalJSON() ([]byte, error) {
	flat := c.Flatten()
	for k, v := range flat {
		if d, ok := v.(time.Duration); ok {
			flat[k] = d.String()
		}
	}
	return json.Marshal(flat)
}

// MarshalYAML encodes the explicitly set values only.
func (c *Collection) MarshalYAML() (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any)
	for _, name := range c.order {
		p := c.params[name]
		if !p.set {
			continue
		}
		v := p.value
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		out[name] = v
	}
	return out, nil
}
