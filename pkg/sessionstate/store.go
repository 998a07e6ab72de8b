// Package sessionstate persists session parameters per session type in a
// YAML file so they survive console restarts.
package sessionstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/console/pkg/session"
)

const fileVersion = 1

// ErrUnsupportedVersion is returned for state files written by a newer console.
var ErrUnsupportedVersion = errors.New("unsupported session state version")

type document struct {
	Version  int                       `yaml:"version"`
	Sessions map[string]map[string]any `yaml:"sessions"`
}

// Store is a file-backed parameter store. It is safe for concurrent use and
// for several console processes sharing one file.
type Store struct {
	path string
	lock *flock.Flock

	mu     sync.RWMutex
	values map[session.Type]map[string]any
}

// Open loads path, creating its directory. A missing file is an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create session state dir: %w", err)
	}
	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		values: make(map[session.Type]map[string]any),
	}
	values, err := s.read()
	if err != nil {
		return nil, err
	}
	s.values = values
	return s, nil
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Values returns a copy of the stored parameters of t.
func (s *Store) Values(t session.Type) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyValues(s.values[t])
}

// Types lists the session types with stored parameters.
func (s *Store) Types() []session.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Type, 0, len(s.values))
	for t := range s.values {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Save replaces the stored parameters of t. The file is re-read under the
// lock first, so types saved by other processes are kept.
func (s *Store) Save(ctx context.Context, t session.Type, values map[string]any) error {
	ok, err := s.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock session state: %w", err)
	}
	if !ok {
		return errors.New("lock session state: not acquired")
	}
	defer func() { _ = s.lock.Unlock() }()

	current, err := s.read()
	if err != nil {
		return err
	}
	current[t] = copyValues(values)
	if err := s.write(current); err != nil {
		return err
	}

	s.mu.Lock()
	s.values = current
	s.mu.Unlock()
	return nil
}

// Reload re-reads the file and returns the types whose parameters changed.
func (s *Store) Reload() ([]session.Type, error) {
	values, err := s.read()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []session.Type
	for t, v := range values {
		if !reflect.DeepEqual(s.values[t], v) {
			changed = append(changed, t)
		}
	}
	s.values = values
	sort.Slice(changed, func(i, j int) bool { return changed[i].String() < changed[j].String() })
	return changed, nil
}

func (s *Store) read() (map[session.Type]map[string]any, error) {
	out := make(map[session.Type]map[string]any)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse session state %s: %w", s.path, err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	for key, values := range doc.Sessions {
		t, err := parseType(key)
		if err != nil {
			log.Warn().Str("component", "sessionstate").Str("key", key).Err(err).Msg("skipping session state entry")
			continue
		}
		out[t] = values
	}
	return out, nil
}

func (s *Store) write(values map[session.Type]map[string]any) error {
	doc := document{Version: fileVersion, Sessions: make(map[string]map[string]any, len(values))}
	for t, v := range values {
		doc.Sessions[t.String()] = v
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}

func parseType(key string) (session.Type, error) {
	major, minor, ok := strings.Cut(key, "/")
	if !ok || minor == "" {
		return session.Type{}, fmt.Errorf("malformed session type %q", key)
	}
	m, err := session.ParseMajorType(major)
	if err != nil {
		return session.Type{}, err
	}
	return session.Type{Major: m, Minor: strings.ToUpper(minor)}, nil
}

func copyValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
