// Package cli wires the cobra command surface.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "dynosweep",
	Short:   "Collect DynamoDB performance metrics from CloudWatch",
	Version: version,
	Long: `Dynosweep collects DynamoDB request counts and P99 latency from
CloudWatch across regions and reporting horizons, persisting raw per-slice
artifacts and consolidated per-table reports for offline analysis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. A non-nil error means a configuration or
// auth-level failure; individual job failures never surface here.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(collectCmd)
}
