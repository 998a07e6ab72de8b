package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by EnvSource.
const EnvPrefix = "VULNTOR_"

// ConfigSource represents a configuration source that can load values into koanf.
// Sources are loaded in priority order (lowest first), with higher priority sources
// overriding lower priority values.
//
// Built-in sources and their priorities:
//   - DefaultSource (10): Hardcoded default values
//   - FileSource (20): Config file
//   - EnvSource (30): Environment variables (VULNTOR_*)
//   - FlagSource (40): Command-line flags
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultSource provides hardcoded default configuration values.
type DefaultSource struct{}

func (s *DefaultSource) Name() string  { return "defaults" }
func (s *DefaultSource) Priority() int { return 10 }

func (s *DefaultSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}
	return nil
}

// FileSource loads configuration from a YAML file. A missing file is skipped.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return 20 }

func (s *FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}

	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error checking config file %s: %w", s.Path, err)
	}

	if err := k.Load(file.Provider(s.Path), yaml.Parser()); err != nil {
		return fmt.Errorf("error loading config file %s: %w", s.Path, err)
	}
	return nil
}

// EnvSource loads configuration from environment variables. Names are
// matched against the known keys so underscores inside a key survive:
//
//	VULNTOR_LOG_LEVEL              -> log.level
//	VULNTOR_CONSOLE_WORKSPACE_DIR  -> console.workspace_dir
//
// Unknown names fall back to replacing every underscore with a dot.
type EnvSource struct {
	Prefix string
}

func (s *EnvSource) Name() string  { return "env" }
func (s *EnvSource) Priority() int { return 30 }

func (s *EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}

	known := make(map[string]string)
	for key := range DefaultConfigAsMap() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	if err := k.Load(env.Provider(prefix, ".", func(name string) string {
		name = strings.ToLower(strings.TrimPrefix(name, prefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	return nil
}

// FlagSource loads configuration from command-line flags. Unchanged flags
// only fill keys no lower source has set.
type FlagSource struct {
	Flags *pflag.FlagSet
	// Verbosity is the -v count; it raises log.level when set.
	Verbosity int
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return 40 }

func (s *FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		if err := k.Load(posflag.Provider(s.Flags, ".", k), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}
	}

	switch {
	case s.Verbosity >= 3:
		_ = k.Set("log.level", "trace")
	case s.Verbosity == 2:
		_ = k.Set("log.level", "debug")
	case s.Verbosity == 1:
		_ = k.Set("log.level", "info")
	}
	return nil
}

// DefaultSources returns the standard configuration sources.
// Order: defaults -> file -> env -> flags
func DefaultSources(configPath string, flags *pflag.FlagSet, verbosity int) []ConfigSource {
	return []ConfigSource{
		&DefaultSource{},
		&FileSource{Path: configPath},
		&EnvSource{Prefix: EnvPrefix},
		&FlagSource{Flags: flags, Verbosity: verbosity},
	}
}

// BindFlags defines the flags that override configuration keys. Flag names
// are the koanf keys themselves.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.String("log.level", def.Log.Level, "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "Log format (console, json)")
	flags.String("log.file", def.Log.File, "Append logs to this file")
	flags.String("console.workspace_dir", def.Console.WorkspaceDir, "Workspace directory")
	flags.String("history.backend", def.History.Backend, "Scan history backend (memory, local, sqlite)")
	flags.Int("scanner.workers", def.Scanner.Workers, "Default scanner worker count")
}
