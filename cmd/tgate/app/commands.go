// Package app provides the entry point for the termgate command-line application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/termgate/termgate/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "tgate",
	DisableAutoGenTag: true,
	Short:             "termgate is a web-accessible multi-session terminal gateway",
	Long: `termgate is a daemon that multiplexes interactive terminal sessions over a
single WebSocket connection: shells on the local host, shells inside ephemeral
sandbox containers, and shells on remote hosts over pooled SSH transports.

A small HTTP catalog surface exposes the live sessions, the remembered
container images and the kubectl contexts of the host.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the termgate CLI.
func NewRootCmd() *cobra.Command {
	// Flags can also be set through TERMGATE_* environment variables.
	viper.SetEnvPrefix("TERMGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
