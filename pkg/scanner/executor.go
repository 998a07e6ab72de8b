package scanner

import (
	"context"

	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/target"
)

// Executor performs the scan work for exactly one target.
//
// Run pushes at least one DATA or ERROR item to out and returns. Failures are
// reported as ERROR results rather than returned. Run should return promptly
// once ctx is done; the core enforces the per-target deadline.
type Executor interface {
	Run(ctx context.Context, targetID string, t *target.Target, out chan<- Result)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, targetID string, t *target.Target, out chan<- Result)

func (f ExecutorFunc) Run(ctx context.Context, targetID string, t *target.Target, out chan<- Result) {
	f(ctx, targetID, t, out)
}

// ExecutorFactory builds the executors of one scan run from the session's
// parameters. Every executor runs once per target.
type ExecutorFactory func(ctx context.Context, p *params.Collection) ([]Executor, error)
