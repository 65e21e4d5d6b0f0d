package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the origin",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := reader.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else if healthy(status) {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", ui.RenderOK(status))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", ui.RenderWarn(status))
		}

		if !healthy(status) {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

// healthy accepts the HTTP ("ok") and gRPC ("serving") spellings.
func healthy(status string) bool {
	return status == "ok" || status == "serving"
}
