package host

import "errors"

var (
	// ErrUnknownTarget is returned for target ids not in the table.
	ErrUnknownTarget = errors.New("unknown target id")

	// ErrUnknownCredential is returned for credential ids not in the table.
	ErrUnknownCredential = errors.New("unknown credential id")

	// ErrUnknownSession is returned for session ids not in the table.
	ErrUnknownSession = errors.New("unknown session id")

	// ErrClosed is returned once the host has shut down.
	ErrClosed = errors.New("host is closed")
)
