// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package host implements the console object plugins call into: the
// identity tables for targets, credentials and sessions, the session type
// registry, scan history and console output.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/console/pkg/arena"
	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/event"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/hook"
	"github.com/vulntor/console/pkg/output"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

// ParamStore persists session parameters per session type between runs.
type ParamStore interface {
	Values(t session.Type) map[string]any
	Save(ctx context.Context, t session.Type, values map[string]any) error
}

// Options configures a Host. Zero values get in-memory defaults.
type Options struct {
	Registry *session.Registry
	History  history.Store
	Output   *output.Stream
	Bus      *event.Bus
	Hooks    *hook.Manager
	Params   ParamStore
	Version  string
	// ScannerDefaults fills core settings scanner types leave unset.
	ScannerDefaults scanner.CoreConfig
}

// Host is the console object.
type Host struct {
	version string

	targets     *arena.Arena[*target.Target]
	credentials *arena.Arena[*credential.Credential]
	sessions    *arena.Arena[*sessionEntry]

	// keyMu guards targetKeys, the dedup index from target key to id.
	keyMu      sync.Mutex
	targetKeys map[string]int

	registry *session.Registry
	history  history.Store
	out      *output.Stream
	bus      *event.Bus
	hooks    *hook.Manager
	params   ParamStore
	scanCore scanner.CoreConfig

	logger zerolog.Logger
	closed atomic.Bool
}

type sessionEntry struct {
	session session.Session
	typ     session.Type
}

// New creates a host.
func New(opts Options) *Host {
	h := &Host{
		version:     opts.Version,
		targets:     arena.New[*target.Target](),
		credentials: arena.New[*credential.Credential](),
		sessions:    arena.New[*sessionEntry](),
		targetKeys:  make(map[string]int),
		registry:    opts.Registry,
		history:     opts.History,
		out:         opts.Output,
		bus:         opts.Bus,
		hooks:       opts.Hooks,
		params:      opts.Params,
		scanCore:    opts.ScannerDefaults,
		logger:      log.With().Str("component", "host").Logger(),
	}
	if h.registry == nil {
		h.registry = session.NewRegistry()
	}
	if h.history == nil {
		h.history = history.NewMemoryStore()
	}
	if h.out == nil {
		h.out = output.NewStream()
	}
	if h.bus == nil {
		h.bus = event.New()
	}
	if h.hooks == nil {
		h.hooks = hook.NewManager()
	}
	if h.version == "" {
		h.version = "0.0.0"
	}
	return h
}

func (h *Host) Version() string              { return h.version }
func (h *Host) Registry() *session.Registry  { return h.registry }
func (h *Host) History() history.Store       { return h.history }
func (h *Host) Output() *output.Stream       { return h.out }
func (h *Host) Bus() *event.Bus              { return h.bus }
func (h *Host) Hooks() *hook.Manager         { return h.hooks }

// ScannerDefaults returns the console-wide scanner core settings.
func (h *Host) ScannerDefaults() scanner.CoreConfig { return h.scanCore }

// Print writes a console line on behalf of a session ("" for the console).
func (h *Host) Print(_ context.Context, sessionID, msg string) {
	h.out.Info(sessionID, "%s", msg)
}

// PrintError reports err on behalf of a session.
func (h *Host) PrintError(_ context.Context, sessionID string, err error) {
	h.out.Error(sessionID, err)
}

// Printf is a console-level Print with formatting.
func (h *Host) Printf(format string, args ...any) {
	h.out.Info("", format, args...)
}

// Close stops running scans, closes every session, persists session
// parameters and runs the shutdown hooks. Close is idempotent.
func (h *Host) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if err := h.SaveParams(ctx); err != nil {
		firstErr = err
	}

	// Sessions close concurrently; scanners wait for their runs to drain.
	var g errgroup.Group
	for _, e := range h.sessions.Snapshot() {
		g.Go(func() error {
			if err := e.Value.session.Close(ctx); err != nil {
				h.logger.Warn().Err(err).Int("session_id", e.ID).Msg("close session")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := h.hooks.TriggerWait(ctx, hook.OnShutdown); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := h.history.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	h.logger.Debug().Msg("host closed")
	return firstErr
}

func (h *Host) checkOpen() error {
	if h.closed.Load() {
		return ErrClosed
	}
	return nil
}
