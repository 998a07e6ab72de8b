package session

import "errors"

var (
	// ErrUnknownType is returned when no factory is registered for a (major, minor) pair.
	ErrUnknownType = errors.New("unknown session type")

	// ErrDuplicateType is returned when a (major, minor) pair is registered twice.
	ErrDuplicateType = errors.New("session type already registered")

	// ErrUnknownCommand is returned for commands missing from a session's table.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDuplicateCommand is returned when a command name is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrArity is returned when a command receives the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrLoginRequired is returned for commands gated behind a successful login.
	ErrLoginRequired = errors.New("login required")

	// ErrInvalidType is returned for malformed type tags.
	ErrInvalidType = errors.New("invalid session type")
)
