package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// LocalStore implements Store on the filesystem.
//
// Layout:
//
//	{root}/
//	  {entry-id}/
//	    entry.json
//	    results.jsonl
//
// Writers take an exclusive file lock on entry.json.lock so two console
// processes sharing a workspace do not interleave writes.
type LocalStore struct {
	root string

	mu     sync.Mutex
	closed bool
}

const (
	entryFile   = "entry.json"
	resultsFile = "results.jsonl"
	lockSuffix  = ".lock"
)

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("history: local store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir %s: %w", dir, err)
	}
	return &LocalStore{root: dir}, nil
}

// Root returns the storage directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) entryDir(id string) string { return filepath.Join(s.root, id) }

func (s *LocalStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *LocalStore) lock(ctx context.Context, id string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(s.entryDir(id), entryFile+lockSuffix))
	ok, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock history entry %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock history entry %s: not acquired", id)
	}
	return fl, nil
}

func (s *LocalStore) Create(ctx context.Context, e *Entry) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	dir := s.entryDir(e.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}

	fl, err := s.lock(ctx, e.ID)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	meta := e.Clone()
	meta.Results = nil
	if err := writeJSON(filepath.Join(dir, entryFile), meta); err != nil {
		return err
	}
	if len(e.Results) == 0 {
		return nil
	}
	return appendJSONL(filepath.Join(dir, resultsFile), e.Results...)
}

func (s *LocalStore) Append(ctx context.Context, id string, r Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.readMeta(id); err != nil {
		return err
	}
	fl, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	// Another process may have finalised the entry while we waited.
	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if meta.Status.Final() {
		return fmt.Errorf("%w: %s", ErrFrozen, id)
	}
	return appendJSONL(filepath.Join(s.entryDir(id), resultsFile), r)
}

func (s *LocalStore) Finalize(ctx context.Context, id string, status Status, cause error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.readMeta(id); err != nil {
		return err
	}
	fl, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if meta.Status.Final() {
		return nil
	}
	meta.Status = status
	meta.Error = errString(cause)
	meta.FinishedAt = time.Now().UTC()
	return writeJSON(filepath.Join(s.entryDir(id), entryFile), meta)
}

func (s *LocalStore) Get(_ context.Context, id string) (*Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	meta, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	results, err := readJSONL(filepath.Join(s.entryDir(id), resultsFile))
	if err != nil {
		return nil, err
	}
	meta.Results = results
	return meta, nil
}

func (s *LocalStore) Last(ctx context.Context, sessionID string) (*Entry, error) {
	entries, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	last, err := lastFinal(entries, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, last.ID)
}

// List returns entry metadata without results, oldest first.
func (s *LocalStore) List(_ context.Context, sessionID string) ([]*Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read history dir: %w", err)
	}
	var out []*Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		meta, err := s.readMeta(d.Name())
		if err != nil {
			// Skip entries with unreadable metadata.
			continue
		}
		if sessionID != "" && meta.SessionID != sessionID {
			continue
		}
		out = append(out, meta)
	}
	sortEntries(out)
	return out, nil
}

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *LocalStore) readMeta(id string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.entryDir(id), entryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read entry %s: %w", id, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	normalizeNumbers(e.Parameters)
	return &e, nil
}

// writeJSON writes through a temp file and renames it into place.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func appendJSONL(path string, records ...Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("append result: %w", err)
		}
	}
	return nil
}

func readJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		normalizeNumbers(r.Data)
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return out, nil
}
