package config

import "time"

// Config is the root configuration of the console.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Console ConsoleConfig `koanf:"console"`
	History HistoryConfig `koanf:"history"`
	Scanner ScannerConfig `koanf:"scanner"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=console json"`
	File   string `koanf:"file"`
}

// ConsoleConfig locates the console's on-disk state.
type ConsoleConfig struct {
	// WorkspaceDir is the state root; "" selects the per-OS default.
	WorkspaceDir string `koanf:"workspace_dir"`
	// SessionFile stores session parameters, relative to the sessions directory.
	SessionFile string `koanf:"session_file"`
}

// HistoryConfig selects the scan history backend.
type HistoryConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory local sqlite"`
}

// ScannerConfig holds scanner core defaults. Session parameters override
// Workers and TargetTimeout per run.
type ScannerConfig struct {
	Workers       int           `koanf:"workers" validate:"min=1"`
	TargetTimeout time.Duration `koanf:"target_timeout" validate:"min=0"`
	QueueSize     int           `koanf:"queue_size" validate:"min=1"`
}
