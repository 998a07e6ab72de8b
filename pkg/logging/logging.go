// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls global logging.
type Options struct {
	// Level is a zerolog level name; "" means error.
	Level string
	// Verbosity raises the level: 1 info, 2 debug, 3 trace.
	Verbosity int
	// Format is "console" (default) or "json".
	Format string
	// File appends logs to a file instead of stderr.
	File string
}

var logWriter io.Writer = os.Stderr

// stdLogWriter forwards stdlib log output to zerolog at debug level.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug().Str("source", "stdlog").Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

// Configure installs the global logger. The returned closer releases the
// log file, if any.
func Configure(opts Options) (io.Closer, error) {
	level := ResolveLevel(opts.Level, opts.Verbosity)
	zerolog.SetGlobalLevel(level)

	var (
		out    io.Writer = logWriter
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	switch strings.ToLower(opts.Format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.File != ""}
	case "json":
	default:
		_ = closer.Close()
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	logContext := zerolog.New(out).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}
	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
	return closer, nil
}

// ResolveLevel combines a configured level name with -v flags; the more
// verbose of the two wins.
func ResolveLevel(name string, verbosity int) zerolog.Level {
	level := parseLogLevel(name)
	var fromFlags zerolog.Level
	switch {
	case verbosity <= 0:
		return level
	case verbosity == 1:
		fromFlags = zerolog.InfoLevel
	case verbosity == 2:
		fromFlags = zerolog.DebugLevel
	default:
		fromFlags = zerolog.TraceLevel
	}
	if fromFlags < level {
		return fromFlags
	}
	return level
}

func parseLogLevel(levelString string) zerolog.Level {
	if levelString == "" {
		return zerolog.ErrorLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

// SetLogWriter sets the writer used when no log file is configured.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// NewLoggerWithWriter returns a JSON logger tagged with component.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

// Component returns the global logger tagged with component.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
