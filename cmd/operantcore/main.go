// Command operantcore runs an unattended stimulus-response experiment from a
// YAML description: it drives the panel hardware, walks the light and session
// schedules, and records every trial to the configured datastore.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "operantcore",
		Short: "Operant conditioning experiment runtime",
		Long: `operantcore runs stimulus-response behavioral experiments unattended.

It drives an operant panel (response port, feeder, house light, speaker)
through a light/sleep/session schedule, runs trials block by block, and
records outcomes to CSV, SQLite or Postgres.`,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newCheckCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("operantcore version %s\n", version)
		},
	}
}
