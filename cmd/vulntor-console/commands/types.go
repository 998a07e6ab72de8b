package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/console/cmd/vulntor-console/internal/format"
	"github.com/vulntor/console/pkg/session"
)

func newTypesCommand() *cobra.Command {
	var major string

	cmd := &cobra.Command{
		Use:     "types",
		Short:   "List registered session types",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "types", err)
			}

			majors := session.AllMajorTypes()
			if major != "" {
				m, err := session.ParseMajorType(major)
				if err != nil {
					return fail(cmd, "types", err)
				}
				majors = []session.MajorType{m}
			}

			var rows [][]string
			for _, m := range majors {
				for _, reg := range app.Host.Registry().Types(m) {
					rows = append(rows, []string{string(reg.Type.Major), reg.Type.Minor, reg.Description})
				}
			}
			return format.FromCommand(cmd).PrintTable([]string{"major", "type", "description"}, rows)
		},
	}

	cmd.Flags().StringVar(&major, "major", "", "Only list CLIENT, SCANNER, UTIL or SERVER types")
	return cmd
}
