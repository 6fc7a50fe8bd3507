// Command booking runs the campus facility booking service.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(out io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "booking",
		Short:         "Campus facility booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("BOOKING_CONFIG"), "YAML config file (env BOOKING_CONFIG)")

	cmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		reconcileCmd(&configPath),
		hashPasswordCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "booking %s (build: %s)\n", version, buildTime)
			},
		},
	)
	return cmd
}
