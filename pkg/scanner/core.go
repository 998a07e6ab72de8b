package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultWorkers   = 100
	DefaultQueueSize = 256
)

// CoreConfig tunes scheduling.
type CoreConfig struct {
	// Workers caps concurrently running executors.
	Workers int
	// TargetTimeout bounds each executor run. Zero disables the deadline.
	TargetTimeout time.Duration
	// QueueSize is the buffer of the result stream.
	QueueSize int
}

// fill copies fields of d into zero fields of c.
func (c CoreConfig) fill(d CoreConfig) CoreConfig {
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.TargetTimeout <= 0 {
		c.TargetTimeout = d.TargetTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

func (c CoreConfig) withDefaults() CoreConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Core drives one executor run per (target, executor) pair and streams the
// results. A Core is single use.
type Core struct {
	jobs      []Job
	executors []Executor
	cfg       CoreConfig
	logger    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	started bool
}

// NewCore creates a core for the given jobs and executors.
func NewCore(jobs []Job, executors []Executor, cfg CoreConfig) *Core {
	return &Core{
		jobs:      jobs,
		executors: executors,
		cfg:       cfg.withDefaults(),
		logger:    log.With().Str("component", "scanner.core").Logger(),
	}
}

// Scan starts enumeration and returns the result stream. The stream closes
// once every started executor has finished or the core is stopped.
func (c *Core) Scan(ctx context.Context) <-chan Result {
	out := make(chan Result, c.cfg.QueueSize)

	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		close(out)
		return out
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.enumerate(ctx, out)
	return out
}

// Stop halts enumeration and cancels running executors. Safe to call more
// than once and before Scan.
func (c *Core) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Core) enumerate(ctx context.Context, out chan<- Result) {
	defer close(out)

	sem := semaphore.NewWeighted(int64(c.cfg.Workers))
	var wg sync.WaitGroup
	started := time.Now()

enumeration:
	for _, job := range c.jobs {
		for _, ex := range c.executors {
			if err := sem.Acquire(ctx, 1); err != nil {
				c.logger.Debug().Err(err).Msg("enumeration halted")
				break enumeration
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				c.runOne(ctx, job, ex, out)
			}()
		}
	}
	wg.Wait()

	c.logger.Debug().
		Int("targets", len(c.jobs)).
		Int("executors", len(c.executors)).
		Dur("elapsed", time.Since(started)).
		Msg("enumeration finished")
}

func (c *Core) runOne(ctx context.Context, job Job, ex Executor, out chan<- Result) {
	tctx, cancel := ctx, context.CancelFunc(func() {})
	if c.cfg.TargetTimeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, c.cfg.TargetTimeout)
	}
	defer cancel()

	exOut := make(chan Result)
	go func() {
		defer close(exOut)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().
					Str("target", job.Target.Address()).
					Bytes("stack", debug.Stack()).
					Msgf("executor panic: %v", r)
				exOut <- Error(job.TargetID, job.Target, fmt.Errorf("%w: %v", ErrExecutorPanic, r))
			}
		}()
		ex.Run(tctx, job.TargetID, job.Target.Clone(), exOut)
	}()

	outcome := false
	for {
		select {
		case r, ok := <-exOut:
			if !ok {
				if !outcome && ctx.Err() == nil {
					c.emit(ctx, out, Error(job.TargetID, job.Target, ErrNoResult))
				}
				return
			}
			if r.Target == nil {
				r.Target = job.Target
			}
			if r.TargetID == "" {
				r.TargetID = job.TargetID
			}
			if r.Time.IsZero() {
				r.Time = time.Now().UTC()
			}
			if r.Type == ResultError && r.Err == nil {
				r.Err = ErrNoCause
			}
			if outcome && r.Type == ResultError && errors.Is(r.Err, ErrExecutorPanic) {
				// The target already has its result; the panic is only logged.
				c.logger.Warn().
					Str("target", job.Target.Address()).
					Err(r.Err).
					Msg("dropping executor panic after result")
				continue
			}
			if r.Type != ResultInfo {
				outcome = true
			}
			c.emit(ctx, out, r)

		case <-tctx.Done():
			// Drain whatever the executor still pushes until it returns.
			go func() {
				for range exOut {
				}
			}()
			if !outcome && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				c.emit(ctx, out, Error(job.TargetID, job.Target,
					fmt.Errorf("target timed out after %s: %w", c.cfg.TargetTimeout, context.DeadlineExceeded)))
			}
			return
		}
	}
}

func (c *Core) emit(ctx context.Context, out chan<- Result, r Result) {
	select {
	case out <- r:
	case <-ctx.Done():
	}
}
