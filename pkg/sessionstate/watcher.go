package sessionstate

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vulntor/console/pkg/session"
)

// Watcher reloads a Store when its file is edited outside the console and
// reports the session types whose parameters changed.
type Watcher struct {
	store    *Store
	onChange func(session.Type)
	watcher  *fsnotify.Watcher

	debounceDelay time.Duration
	logger        zerolog.Logger

	// mu protects debounceTimer.
	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for store. onChange runs once per changed
// type after each debounced reload.
func NewWatcher(store *Store, onChange func(session.Type), logger zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:         store,
		onChange:      onChange,
		watcher:       w,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "sessionstate.watcher").Logger(),
	}, nil
}

// Start watches until ctx is cancelled. Run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify watches directories; rename-based writes replace the file.
	dir := filepath.Dir(w.store.Path())
	name := filepath.Base(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch session state directory")
		return err
	}
	w.logger.Debug().Str("file", w.store.Path()).Dur("debounce", w.debounceDelay).Msg("Started watching session state")

	defer func() {
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	changed, err := w.store.Reload()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload session state")
		return
	}
	for _, t := range changed {
		w.logger.Info().Str("type", t.String()).Msg("Session parameters reloaded")
		if w.onChange != nil {
			w.onChange(t)
		}
	}
}

// Close stops the watcher without waiting for Start to return.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
