package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/forge/internal/forgectl"
)

// Print version info and exit.
func versionCmd(app *forgectl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Version()
		},
	}
	return cmd
}
