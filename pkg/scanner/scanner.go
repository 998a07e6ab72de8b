package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/session"
)

// State is the monitor state of a scan run.
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// RunInfo identifies the run a result belongs to.
type RunInfo struct {
	SessionID   string
	ScannerType string
	EntryID     string
	// ClientToken, when set, names the client the results stream to.
	ClientToken string
}

// Recorder routes a scan result into history. It resolves or creates the
// result's target and returns its id.
type Recorder interface {
	RecordScanResult(ctx context.Context, run RunInfo, r Result) (string, error)
}

// Host is what a scanner session needs from the console.
type Host interface {
	session.Host
	Recorder
	History() history.Store
}

// CoreDefaulter is implemented by hosts that supply console-wide core
// defaults. They apply where a scanner type's Config.Core leaves zeros.
type CoreDefaulter interface {
	ScannerDefaults() CoreConfig
}

// Config describes a concrete scanner type.
type Config struct {
	// Params are the declared parameters; params.ScannerBase is the usual start.
	Params *params.Collection
	// Executors builds the executor list for a run.
	Executors ExecutorFactory
	// OnResult runs after each result is recorded.
	OnResult func(ctx context.Context, s *Scanner, r Result)
	// Core overrides scheduling defaults not covered by parameters.
	Core CoreConfig
}

// ScanOption customises a single run.
type ScanOption func(*RunInfo)

// WithClientToken streams the run's results to the given client.
func WithClientToken(token string) ScanOption {
	return func(r *RunInfo) { r.ClientToken = token }
}

type run struct {
	info   RunInfo
	core   *Core
	cancel context.CancelFunc
	done   chan struct{}
	state  State
	err    error
}

// Scanner is the session base every scanner type embeds.
type Scanner struct {
	*session.Base

	host Host
	cfg  Config

	mu        sync.Mutex
	current   *run
	lastEntry string
}

// New builds a scanner session from a factory environment.
func New(env session.Env, subType string, cfg Config) (*Scanner, error) {
	h, ok := env.Host.(Host)
	if !ok {
		return nil, ErrUnsupportedHost
	}
	if cfg.Executors == nil {
		return nil, fmt.Errorf("scanner %s: executor factory is required", subType)
	}
	if d, ok := env.Host.(CoreDefaulter); ok {
		cfg.Core = cfg.Core.fill(d.ScannerDefaults())
	}
	base, err := session.NewBase(env, session.Scanner, subType, cfg.Params, false)
	if err != nil {
		return nil, err
	}
	s := &Scanner{Base: base, host: h, cfg: cfg}
	base.Commands().MustRegister(s.commands()...)
	return s, nil
}

// Scan validates parameters, records a new history entry and starts the
// run in the background. It returns the history entry id.
func (s *Scanner) Scan(ctx context.Context, opts ...ScanOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.state == StateRunning {
		return "", ErrScanRunning
	}

	p := s.Params()
	if err := p.Validate(); err != nil {
		return "", err
	}

	jobs, errs := ResolveTargets(p.StringList(params.Targets), s.host, 0)
	for _, err := range errs {
		s.PrintError(ctx, err)
	}
	if len(jobs) == 0 {
		return "", ErrNoTargets
	}

	executors, err := s.cfg.Executors(ctx, p)
	if err != nil {
		return "", fmt.Errorf("build executors: %w", err)
	}
	if len(executors) == 0 {
		return "", ErrNoExecutors
	}

	entry := history.NewEntry(s.ID(), s.SubType(), p.Flatten())
	if err := s.host.History().Create(ctx, entry); err != nil {
		return "", fmt.Errorf("create history entry: %w", err)
	}

	info := RunInfo{SessionID: s.ID(), ScannerType: s.SubType(), EntryID: entry.ID}
	for _, opt := range opts {
		opt(&info)
	}

	// Explicit parameters win, then the type's core settings, then the
	// parameter defaults.
	coreCfg := s.cfg.Core
	if pp, ok := p.Parameter(params.Workers); ok && (pp.IsSet() || coreCfg.Workers <= 0) {
		coreCfg.Workers = p.Int(params.Workers)
	}
	if pp, ok := p.Parameter(params.Timeout); ok && (pp.IsSet() || coreCfg.TargetTimeout <= 0) {
		coreCfg.TargetTimeout = p.Duration(params.Timeout)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		info:   info,
		core:   NewCore(jobs, executors, coreCfg),
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateRunning,
	}
	s.current = r

	s.Logger().Info().
		Str("entry_id", entry.ID).
		Int("targets", len(jobs)).
		Int("executors", len(executors)).
		Msg("scan started")

	go s.monitor(runCtx, r, r.core.Scan(runCtx))
	return entry.ID, nil
}

// Stop cancels the running scan and waits for its monitor to finish. It
// returns nil when nothing is running.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	r := s.current
	if r == nil || r.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	r.cancel()
	r.core.Stop()
	s.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the current run finishes. A ctx timeout returns the ctx
// error and leaves the scan running.
func (s *Scanner) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed when the current (or last) run has finished. Before any
// scan it is already closed.
func (s *Scanner) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return closedDone
	}
	return s.current.done
}

// State reports the monitor state of the current (or last) run.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return StateIdle
	}
	return s.current.state
}

// Err returns the error a failed run ended with.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.err
}

// CurrentHistoryID returns the entry id of the current (or last) run.
func (s *Scanner) CurrentHistoryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.info.EntryID
}

// LastHistoryID returns the entry id of the most recently completed or
// stopped scan, or "" if there is none.
func (s *Scanner) LastHistoryID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEntry, nil
}

// LastHistory returns the most recently completed or stopped scan, or nil
// if there is none.
func (s *Scanner) LastHistory(ctx context.Context) (*history.Entry, error) {
	id, _ := s.LastHistoryID()
	if id == "" {
		return nil, nil
	}
	return s.host.History().Get(ctx, id)
}

// Close stops a running scan.
func (s *Scanner) Close(ctx context.Context) error {
	return s.Stop(ctx)
}

func (s *Scanner) monitor(ctx context.Context, r *run, results <-chan Result) {
	defer close(r.done)

	state, err := s.drain(ctx, r, results)

	// Idempotent: the stream may already be closed.
	r.core.Stop()
	r.cancel()

	var status history.Status
	switch state {
	case StateCompleted:
		status = history.StatusCompleted
	case StateCancelled:
		status = history.StatusStopped
	default:
		status = history.StatusFailed
	}
	finalizeCtx := context.WithoutCancel(ctx)
	if ferr := s.host.History().Finalize(finalizeCtx, r.info.EntryID, status, err); ferr != nil {
		s.Logger().Error().Err(ferr).Str("entry_id", r.info.EntryID).Msg("finalize history entry")
	}

	if state == StateFailed {
		s.PrintError(finalizeCtx, fmt.Errorf("scan failed: %w", err))
	}

	s.mu.Lock()
	r.state = state
	r.err = err
	if state == StateCompleted || state == StateCancelled {
		s.lastEntry = r.info.EntryID
	}
	s.mu.Unlock()

	s.Logger().Info().
		Str("entry_id", r.info.EntryID).
		Str("state", string(state)).
		Msg("scan finished")
}

// drain consumes the result stream until it ends, the run is cancelled or
// recording fails.
func (s *Scanner) drain(ctx context.Context, r *run, results <-chan Result) (state State, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.Logger().Error().Bytes("stack", debug.Stack()).Msgf("monitor panic: %v", p)
			state, err = StateFailed, fmt.Errorf("monitor panic: %v", p)
		}
	}()

	recordCtx := context.WithoutCancel(ctx)
	showErrors := s.Params().Bool(params.ShowErrors)
	for {
		select {
		case <-ctx.Done():
			return StateCancelled, nil
		case res, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return StateCancelled, nil
				}
				return StateCompleted, nil
			}
			if ctx.Err() != nil {
				return StateCancelled, nil
			}
			id, err := s.host.RecordScanResult(recordCtx, r.info, res)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return StateCancelled, nil
				}
				return StateFailed, fmt.Errorf("record result: %w", err)
			}
			if res.TargetID == "" {
				res.TargetID = id
			}
			if res.Type == ResultError && showErrors {
				s.PrintError(ctx, fmt.Errorf("%s: %w", res.Address(), res.Err))
			}
			if s.cfg.OnResult != nil {
				s.cfg.OnResult(ctx, s, res)
			}
		}
	}
}

func (s *Scanner) commands() []*session.Command {
	return []*session.Command{
		{
			Name: "scan", Help: "Start scanning the configured targets", Group: "SCAN",
			Handler: func(ctx context.Context, args []string) (any, error) {
				return s.Scan(ctx)
			},
		},
		{
			Name: "stop", Help: "Stop the running scan", Group: "SCAN",
			Handler: func(ctx context.Context, args []string) (any, error) {
				if err := s.Stop(ctx); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			Name: "status", Help: "Show the scan state", Group: "SCAN",
			Handler: func(ctx context.Context, args []string) (any, error) {
				return string(s.State()), nil
			},
		},
		{
			Name: "getlasthistoryid", Help: "Show the id of the last finished scan", Group: "HISTORY",
			Handler: func(ctx context.Context, args []string) (any, error) {
				return s.LastHistoryID()
			},
		},
		{
			Name: "getlasthistory", Help: "Show the results of the last finished scan", Group: "HISTORY",
			Handler: func(ctx context.Context, args []string) (any, error) {
				e, err := s.LastHistory(ctx)
				if err != nil || e == nil {
					return nil, err
				}
				return e, nil
			},
		},
	}
}
