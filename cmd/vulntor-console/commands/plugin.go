package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/console/cmd/vulntor-console/internal/format"
	"github.com/vulntor/console/pkg/plugin"
)

func newPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugin",
		Short:   "List and run console plugins",
		GroupID: "core",
	}
	cmd.AddCommand(newPluginListCommand())
	cmd.AddCommand(newPluginRunCommand())
	return cmd
}

func newPluginListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "plugin list", err)
			}

			plugins := app.Plugins.List()
			rows := make([][]string, 0, len(plugins))
			for _, p := range plugins {
				minVersion := ""
				if vp, ok := p.(plugin.Versioned); ok {
					minVersion = vp.MinHostVersion()
				}
				rows = append(rows, []string{p.Name(), p.Description(), minVersion})
			}
			f := format.FromCommand(cmd)
			if err := f.PrintTable([]string{"name", "description", "min host"}, rows); err != nil {
				return err
			}
			if f.IsJSON() {
				return nil
			}
			return f.PrintSummary(fmt.Sprintf("\n%d plugin(s). Run one with: %s plugin run <name>", len(plugins), cliExecutable))
		},
	}
}

func newPluginRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> [name...]",
		Short: "Run plugins in order against one host",
		Long: `Runs each named plugin against the same host, so later plugins see the
targets, credentials and sessions earlier ones created. The run stops at
the first failing plugin.`,
		Example: `  vulntor-console plugin run targets credentials sessions
  vulntor-console plugin run registerscanner credscan`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "plugin run", err)
			}
			for _, name := range args {
				// The runner reports failures through the host output.
				if err := app.Runner.Run(cmd.Context(), name); err != nil {
					return reported(err)
				}
			}
			return nil
		},
	}
}
