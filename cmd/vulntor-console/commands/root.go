package commands

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/console/cmd/vulntor-console/internal/format"
	"github.com/vulntor/console/pkg/config"
)

const cliExecutable = "vulntor-console"

type appKey struct{}

// NewCommand constructs the top-level CLI command, wiring global flags and
// the App lifecycle shared by every subcommand.
func NewCommand() *cobra.Command {
	var (
		configFile        string
		workspaceDisabled bool
		verbosityCount    int
		outputMode        string
		noColor           bool
		app               *App
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Vulntor console runs scanners, clients and plugins against stored targets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return fail(cmd, "parse flags", WithErrorCode(err, codeUsage))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var err error
			app, err = NewApp(ctx, AppOptions{
				ConfigFile:  configFile,
				Flags:       cmd.Flags(),
				Verbosity:   verbosityCount,
				NoWorkspace: workspaceDisabled,
				JSON:        format.ParseMode(outputMode) == format.ModeJSON,
				Color:       !noColor,
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			})
			if err != nil {
				return fail(cmd, "initialize console", err)
			}

			ctx = context.WithValue(ctx, appKey{}, app)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	closeApp := func(cmd *cobra.Command) error {
		if app == nil {
			return nil
		}
		err := app.Close(context.WithoutCancel(cmd.Context()))
		app = nil
		return err
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		return closeApp(cmd)
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().BoolVar(&workspaceDisabled, "no-workspace", false, "Disable workspace persistence for this run")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().StringVarP(&outputMode, "output", "o", string(format.ModeTable), "Output format (table, json)")
	cmd.PersistentFlags().Bool("quiet", false, "Suppress summaries")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newScanCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newPluginCommand())
	cmd.AddCommand(newTypesCommand())
	cmd.AddCommand(newVersionCommand())

	closeOnError(cmd, closeApp)
	return cmd
}

// closeOnError wraps every RunE below cmd so a failing command still shuts
// the App down; cobra skips post-run hooks after an error.
func closeOnError(cmd *cobra.Command, closeApp func(*cobra.Command) error) {
	for _, c := range cmd.Commands() {
		closeOnError(c, closeApp)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		err := run(c, args)
		if err != nil {
			if cerr := closeApp(c); cerr != nil {
				log.Warn().Err(cerr).Msg("Failed to close console")
			}
		}
		return err
	}
}

var errNoApp = errors.New("console not initialized")

// appFrom returns the App built by the root command's pre-run.
func appFrom(cmd *cobra.Command) (*App, error) {
	ctx := cmd.Context()
	if ctx == nil && cmd.Root() != nil {
		ctx = cmd.Root().Context()
	}
	if ctx == nil {
		return nil, errNoApp
	}
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, errNoApp
	}
	return app, nil
}

// fail prints err through the command's formatter and returns it.
func fail(cmd *cobra.Command, operation string, err error) error {
	return reported(format.FromCommand(cmd).PrintFailure(operation, err, ErrorCode(err), Suggestions(err)))
}
