package plugin

import "errors"

var (
	// ErrPluginNotFound is returned for names missing from the registry.
	// CLI exit code: 4
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginAlreadyRegistered is returned when a name is registered twice.
	// CLI exit code: 1
	ErrPluginAlreadyRegistered = errors.New("plugin already registered")

	// ErrIncompatibleHost is returned when the host is older than a plugin requires.
	// CLI exit code: 2
	ErrIncompatibleHost = errors.New("plugin requires a newer host")

	// ErrInvalidPlugin is returned for nil or unnamed plugins and bad version constraints.
	// CLI exit code: 2
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrPluginPanic wraps a panic recovered from a plugin run.
	// CLI exit code: 1
	ErrPluginPanic = errors.New("plugin panicked")
)

// IsNotFound reports whether err is a missing-plugin error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPluginNotFound)
}

// ExitCode maps plugin errors to CLI exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrPluginNotFound):
		return 4
	case errors.Is(err, ErrIncompatibleHost), errors.Is(err, ErrInvalidPlugin):
		return 2
	default:
		return 1
	}
}
