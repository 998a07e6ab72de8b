// pkg/hook/manager.go
// Package hook provides lifecycle hooks for the console: plugins register
// functions for named events such as shutdown and the host triggers them.
package hook

import (
	"context"
	"sync"
)

// Lifecycle events triggered by the host.
const (
	OnShutdown       = "onShutdown"
	OnSessionCreated = "onSessionCreated"
	OnScanFinished   = "onScanFinished"
)

// HookFunc is a function run when its event triggers.
type HookFunc func(ctx context.Context)

// Manager stores hooks per named event.
type Manager struct {
	mu        sync.RWMutex
	hooks     map[string][]HookFunc
	triggered map[string]bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		hooks:     make(map[string][]HookFunc),
		triggered: make(map[string]bool),
	}
}

// Register adds fn to the named event.
func (m *Manager) Register(event string, fn HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[event] = append(m.hooks[event], fn)
}

// Trigger runs the event's hooks concurrently and returns without waiting.
func (m *Manager) Trigger(ctx context.Context, event string) {
	for _, fn := range m.mark(event) {
		go fn(ctx)
	}
}

// TriggerWait runs the event's hooks concurrently and waits until they
// return or ctx is done.
func (m *Manager) TriggerWait(ctx context.Context, event string) error {
	hooks := m.mark(event)
	var wg sync.WaitGroup
	for _, fn := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) mark(event string) []HookFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered[event] = true
	return append([]HookFunc(nil), m.hooks[event]...)
}

// IsTriggered reports whether event has fired at least once.
func (m *Manager) IsTriggered(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggered[event]
}
