package scanner

import "errors"

var (
	// ErrScanRunning is returned by Scan while a previous run is active.
	ErrScanRunning = errors.New("scan already running")

	// ErrNoTargets is returned when the targets parameter yields nothing.
	ErrNoTargets = errors.New("no scannable targets")

	// ErrNoExecutors is returned when the executor factory builds nothing.
	ErrNoExecutors = errors.New("scanner produced no executors")

	// ErrUnknownTarget is returned for a reference to a missing stored target.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrUnknownCredential is returned when a credentialed scanner names a
	// missing stored credential.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrExecutorPanic wraps a panic recovered from an executor.
	ErrExecutorPanic = errors.New("executor panicked")

	// ErrNoResult is reported for an executor that returned without a
	// DATA or ERROR item.
	ErrNoResult = errors.New("executor produced no result")

	// ErrNoCause replaces the missing cause of an ERROR item.
	ErrNoCause = errors.New("executor reported an error without a cause")

	// ErrUnsupportedHost is returned when the session host cannot record scans.
	ErrUnsupportedHost = errors.New("host does not support scanner sessions")
)
