package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/forge/internal/forgectl"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forge",
		Short: "forge runs Forge load tests against a Kubernetes cluster.",
		Long: `forge runs Forge load tests against a Kubernetes cluster.

Every flag of the test command can also be set with the environment variable of the same name,
e.g. FORGE_NAMESPACE for --forge-namespace, or in a config file:

forge-cluster-name: aptos-forge-0
forge-test-suite: land_blocking
forge-runner-duration-secs: 300

The location of this file can be passed in using the --config argument.
If not provided, $HOME/.forge.yaml is used.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.forge.yaml)")

	cmd.AddCommand(
		versionCmd(forgectl.New()),
		testCmd(forgectl.New()),
	)

	return cmd
}
