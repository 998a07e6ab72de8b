package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Create(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.ID)
	}
	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *MemoryStore) Append(_ context.Context, id string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status.Final() {
		return fmt.Errorf("%w: %s", ErrFrozen, id)
	}
	e.Results = append(e.Results, r)
	return nil
}

func (s *MemoryStore) Finalize(_ context.Context, id string, status Status, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status.Final() {
		return nil
	}
	e.Status = status
	e.Error = errString(cause)
	e.FinishedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Last(ctx context.Context, sessionID string) (*Entry, error) {
	entries, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return lastFinal(entries, sessionID)
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for _, e := range s.entries {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// sortEntries orders by start time, oldest first.
func sortEntries(es []*Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		return es[i].StartedAt.Before(es[j].StartedAt)
	})
}

func lastFinal(sorted []*Entry, sessionID string) (*Entry, error) {
	var last *Entry
	for _, e := range sorted {
		if !e.Status.Final() {
			continue
		}
		if last == nil || !e.FinishedAt.Before(last.FinishedAt) {
			last = e
		}
	}
	if last == nil {
		return nil, fmt.Errorf("%w: no finished scan for session %s", ErrNotFound, sessionID)
	}
	return last, nil
}
