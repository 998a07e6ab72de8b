package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/vulntor/console/pkg/clients"
	"github.com/vulntor/console/pkg/config"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/hook"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/logging"
	"github.com/vulntor/console/pkg/output"
	"github.com/vulntor/console/pkg/output/subscribers"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/plugins/examples"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/scanners/pingscan"
	"github.com/vulntor/console/pkg/scanners/portscan"
	"github.com/vulntor/console/pkg/servers/apiserver"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/sessionstate"
	"github.com/vulntor/console/pkg/version"
	"github.com/vulntor/console/pkg/workspace"
)

// AppOptions configures NewApp.
type AppOptions struct {
	ConfigFile string
	Flags      *pflag.FlagSet
	Verbosity  int
	// NoWorkspace keeps all state in memory for this run.
	NoWorkspace bool
	JSON        bool
	Color       bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// App is a fully wired console: configuration, host, built-in session
// types and the plugin registry.
type App struct {
	Config    config.Config
	Workspace string
	Host      *host.Host
	Plugins   *plugin.Registry
	Runner    *plugin.Runner

	logCloser   io.Closer
	stopWatcher context.CancelFunc
}

// RegisterBuiltins declares the session types shipped with the console.
// EXAMPLESCANNER and EXAMPLEUTIL are left to their registration plugins.
func RegisterBuiltins(r *session.Registry) error {
	regs := []func(*session.Registry) error{
		func(r *session.Registry) error { return clients.Register(r, nil) },
		portscan.Register,
		pingscan.Register,
		apiserver.Register,
	}
	for _, reg := range regs {
		if err := reg(r); err != nil {
			return err
		}
	}
	return nil
}

// NewApp loads configuration and builds the console.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	mgr := config.NewManager()
	if err := mgr.Load(config.DefaultSources(opts.ConfigFile, opts.Flags, opts.Verbosity)...); err != nil {
		return nil, WithErrorCode(err, codeConfig)
	}
	cfg := mgr.Get()

	logCloser, err := logging.Configure(logging.Options{
		Level:     cfg.Log.Level,
		Verbosity: opts.Verbosity,
		Format:    cfg.Log.Format,
		File:      cfg.Log.File,
	})
	if err != nil {
		return nil, WithErrorCode(err, codeConfig)
	}

	app := &App{Config: cfg, logCloser: logCloser}
	hopts := host.Options{
		Output:  newOutput(opts),
		Hooks:   hook.NewManager(),
		Version: version.Version,
		ScannerDefaults: scanner.CoreConfig{
			Workers:       cfg.Scanner.Workers,
			TargetTimeout: cfg.Scanner.TargetTimeout,
			QueueSize:     cfg.Scanner.QueueSize,
		},
	}

	var store *sessionstate.Store
	if opts.NoWorkspace {
		hopts.History = history.NewMemoryStore()
	} else {
		app.Workspace, err = workspace.Prepare(cfg.Console.WorkspaceDir)
		if err != nil {
			app.closeLog()
			return nil, WithErrorCode(fmt.Errorf("prepare workspace: %w", err), codeWorkspace)
		}
		if hopts.History, err = openHistory(cfg.History.Backend, app.Workspace); err != nil {
			app.closeLog()
			return nil, WithErrorCode(err, codeWorkspace)
		}
		store, err = sessionstate.Open(workspace.SessionFilePath(app.Workspace, cfg.Console.SessionFile))
		if err != nil {
			app.closeLog()
			_ = hopts.History.Close()
			return nil, WithErrorCode(err, codeWorkspace)
		}
		hopts.Params = store
	}

	hopts.Registry = session.NewRegistry()
	if err := RegisterBuiltins(hopts.Registry); err != nil {
		app.closeLog()
		return nil, err
	}

	app.Host = host.New(hopts)
	app.Host.Hooks().Register(hook.OnShutdown, func(context.Context) {
		log.Debug().Str("component", "console").Msg("console shutting down")
	})

	if store != nil {
		app.watchSessionState(ctx, store)
	}

	app.Plugins = plugin.NewRegistry(version.Version)
	if err := registerPlugins(app.Plugins); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Runner = &plugin.Runner{Registry: app.Plugins, Host: app.Host}

	log.Debug().
		Str("workspace", app.Workspace).
		Str("history", cfg.History.Backend).
		Msg("console ready")
	return app, nil
}

func registerPlugins(r *plugin.Registry) error {
	for _, p := range examples.All(examples.DefaultLab()) {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

func openHistory(backend, root string) (history.Store, error) {
	switch backend {
	case "memory":
		return history.NewMemoryStore(), nil
	case "sqlite":
		store, err := history.OpenSQLite(filepath.Join(root, workspace.HistoryDir, "history.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		store, err := history.NewLocalStore(filepath.Join(root, workspace.HistoryDir))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

func newOutput(opts AppOptions) *output.Stream {
	stream := output.NewStream()
	if opts.Stdout == nil || opts.Stderr == nil {
		return stream
	}
	if opts.JSON {
		stream.Subscribe(subscribers.NewJSONFormatter(opts.Stdout))
	} else {
		stream.Subscribe(subscribers.NewHumanFormatter(opts.Stdout, opts.Stderr, opts.Color))
	}
	level := output.Level(opts.Verbosity)
	if level > output.LevelTrace {
		level = output.LevelTrace
	}
	if opts.Verbosity > 0 {
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(level, opts.Stderr, opts.Color))
	}
	return stream
}

func (a *App) watchSessionState(ctx context.Context, store *sessionstate.Store) {
	w, err := sessionstate.NewWatcher(store, a.Host.ReloadParams, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("session state watcher disabled")
		return
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopWatcher = cancel
	go func() { _ = w.Start(wctx) }()
}

// Close shuts the host down, which persists session parameters, and
// releases the log file.
func (a *App) Close(ctx context.Context) error {
	if a.stopWatcher != nil {
		a.stopWatcher()
	}
	var err error
	if a.Host != nil {
		err = a.Host.Close(ctx)
	}
	a.closeLog()
	return err
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
