package commands

import (
	"context"
	"errors"

	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
)

// Error codes used by the suggestion system.
const (
	codeConfig         = "CONFIG"
	codeWorkspace      = "WORKSPACE"
	codeUsage          = "INVALID_USAGE"
	codeUnknownType    = "UNKNOWN_SESSION_TYPE"
	codeInvalidParam   = "INVALID_PARAMETER"
	codeNoTargets      = "NO_TARGETS"
	codePluginNotFound = "PLUGIN_NOT_FOUND"
	codePluginFailed   = "PLUGIN_FAILED"
	codeHistoryMissing = "HISTORY_NOT_FOUND"
	codeTimeout        = "TIMEOUT"
	codeScanFailure    = "SCAN_FAILURE"
)

var (
	// ErrUsage marks malformed command-line input.
	ErrUsage = errors.New("invalid usage")

	// ErrScanFailed is returned after printing the partial entry of a
	// failed scan run.
	ErrScanFailed = errors.New("scan failed")
)

type codedError struct {
	error
	code string
}

func (e *codedError) Unwrap() error { return e.error }
func (e *codedError) Code() string  { return e.code }

// WithErrorCode wraps err with a specific CLI error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// ErrorCode resolves err into a CLI error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrUsage):
		return codeUsage
	case errors.Is(err, session.ErrUnknownType), errors.Is(err, session.ErrInvalidType):
		return codeUnknownType
	case errors.Is(err, params.ErrUnknownParameter), errors.Is(err, params.ErrInvalidValue), errors.Is(err, params.ErrMissingRequired):
		return codeInvalidParam
	case errors.Is(err, scanner.ErrNoTargets):
		return codeNoTargets
	case errors.Is(err, plugin.ErrPluginNotFound):
		return codePluginNotFound
	case errors.Is(err, plugin.ErrPluginPanic), errors.Is(err, plugin.ErrIncompatibleHost), errors.Is(err, plugin.ErrInvalidPlugin):
		return codePluginFailed
	case errors.Is(err, history.ErrNotFound), errors.Is(err, host.ErrUnknownSession):
		return codeHistoryMissing
	case errors.Is(err, context.DeadlineExceeded):
		return codeTimeout
	}
	return codeScanFailure
}

// ExitCode maps errors to process exit codes.
//
//   - 0: success
//   - 1: general failure
//   - 2: invalid usage or input
//   - 4: not found
//   - 5: timed out
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch ErrorCode(err) {
	case codeUsage, codeUnknownType, codeInvalidParam, codeNoTargets, codeConfig:
		return 2
	case codePluginNotFound, codePluginFailed:
		return plugin.ExitCode(err)
	case codeHistoryMissing:
		return 4
	case codeTimeout:
		return 5
	default:
		return 1
	}
}

// Suggestions provides CLI hints for err.
func Suggestions(err error) []string {
	switch ErrorCode(err) {
	case "":
		return nil
	case codeConfig:
		return []string{
			"Check the config file:      vulntor-console --config console.yaml ...",
			"Environment overrides use the VULNTOR_ prefix, e.g. VULNTOR_LOG_LEVEL=debug",
		}
	case codeWorkspace:
		return []string{
			"Choose another directory:   vulntor-console --console.workspace_dir /tmp/console ...",
			"Run without persistence:    vulntor-console --no-workspace ...",
		}
	case codeUnknownType:
		return []string{"List session types:         vulntor-console types"}
	case codeInvalidParam:
		return []string{"Pass parameters as name=value: vulntor-console scan PORTSCAN --param ports=22,445"}
	case codeNoTargets:
		return []string{"Set targets:                vulntor-console scan PORTSCAN --param targets=10.0.0.0/24"}
	case codePluginNotFound:
		return []string{"List plugins:               vulntor-console plugin list"}
	case codeHistoryMissing:
		return []string{"History ids are printed by: vulntor-console scan <TYPE> --wait 30s"}
	case codeTimeout:
		return []string{"Raise the wait:             vulntor-console scan <TYPE> --wait 5m"}
	default:
		return []string{"Retry with verbose logs:    vulntor-console -vv ..."}
	}
}

// reportedError marks an error already printed to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
