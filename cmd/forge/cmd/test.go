package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/G-Research/forge/internal/forgectl"
)

// Run forge once against the current cluster and write the configured reports.
func testCmd(app *forgectl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a forge test and report on it.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := forgectl.CheckRepositoryRoot(afero.NewOsFs()); err != nil {
				return err
			}
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Create a context that is cancelled on SIGINT/SIGTERM.
			// Ensures the runner stops polling and its cleanup runs on ctrl-C.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stopSignal := make(chan os.Signal, 1)
			signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-ctx.Done():
					return
				case <-stopSignal:
					cancel()
				}
			}()

			return app.Test(ctx)
		},
	}

	addTestFlags(cmd)

	return cmd
}
