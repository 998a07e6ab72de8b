// Package config loads the console configuration from layered sources.
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

// Manager handles loading and accessing configuration.
type Manager struct {
	mu            sync.RWMutex
	koanfInstance *koanf.Koanf
	currentConfig Config
}

// NewManager creates a manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "error",
			Format: "console",
		},
		Console: ConsoleConfig{
			SessionFile: "sessions.yaml",
		},
		History: HistoryConfig{
			Backend: "local",
		},
		Scanner: ScannerConfig{
			Workers:       100,
			TargetTimeout: 0,
			QueueSize:     1000,
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for confmap.Provider. Its keys
// are also the set EnvSource maps variables onto.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"console.workspace_dir": def.Console.WorkspaceDir,
		"console.session_file":  def.Console.SessionFile,

		"history.backend": def.History.Backend,

		"scanner.workers":        def.Scanner.Workers,
		"scanner.target_timeout": def.Scanner.TargetTimeout.String(),
		"scanner.queue_size":     def.Scanner.QueueSize,
	}
}

// Load applies sources in priority order and validates the result.
func (m *Manager) Load(sources ...ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := append([]ConfigSource(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	k := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	m.koanfInstance = k
	m.currentConfig = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Keys returns every loaded key with its value, for `config show` style output.
func (m *Manager) Keys() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.All()
}

var validate = validator.New()

// Validate checks field constraints of cfg.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
