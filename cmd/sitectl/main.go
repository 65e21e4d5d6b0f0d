package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/client"
	"github.com/alfredjeanlab/sitesync/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool

	// httpClient covers the full API; reader is the transport chosen for
	// read-only commands.
	httpClient *client.HTTPClient
	reader     client.ConfigReader
)

func defaultHTTPURL() string {
	if s := os.Getenv("SITECTL_URL"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.URL != "" {
		return r.URL
	}
	return "http://localhost:3000"
}

func defaultServer() string {
	if s := os.Getenv("SITECTL_GRPC_ADDR"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.GRPCAddr != "" {
		return r.GRPCAddr
	}
	return "localhost:9090"
}

// skipClient overrides PersistentPreRunE on commands that never talk to an
// origin.
func skipClient(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "sitectl <command>",
	Short:         "Manage a sitesync origin and its site configuration",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		httpClient = client.NewHTTPClient(httpURL)
		switch transport {
		case "http":
			reader = httpClient
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			reader = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if reader != nil {
			reader.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "origin HTTP URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "origin gRPC address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport for reads (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "config", Title: "Site config:"},
		&cobra.Group{ID: "webhooks", Title: "Webhooks:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Site config
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cssCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(watchCmd)

	// Webhooks
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
	rootCmd.AddCommand(subscribersCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
