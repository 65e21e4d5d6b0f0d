// Command siteagent keeps a local copy of the site config in sync with a
// sitesync origin. It receives webhook pushes, optionally follows the event
// bus, and polls as a fallback; every applied config is cached on disk and
// can trigger a rebuild command.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "siteagent",
	Short:         "Sync the site config from a sitesync origin",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.LoadAgent()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("log-format")
		logger := config.NewLogger(cfg.LogLevel, format)
		slog.SetDefault(logger)
		return runAgent(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.Flags().String("env-file", ".env", "dotenv file loaded before reading SITEAGENT_* variables")
	rootCmd.Flags().String("log-format", "text", "log format (text or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
