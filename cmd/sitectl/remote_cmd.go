package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named origin remotes",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

func init() {
	add := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add or update a named remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			natsURL, _ := cmd.Flags().GetString("nats")
			r := Remote{URL: args[1], GRPCAddr: grpcAddr, NATSURL: natsURL}
			if err := updateRemotes(func(c *RemotesConfig) error {
				c.Remotes[args[0]] = r
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote %q saved (%s)\n", args[0], r.URL)
			return nil
		},
	}
	add.Flags().String("grpc", "", "gRPC address (host:port)")
	add.Flags().String("nats", "", "NATS URL for event streaming")

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a named remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := updateRemotes(func(c *RemotesConfig) error { return c.Remove(args[0]) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
			return nil
		},
	}

	use := &cobra.Command{
		Use:   "use <name>",
		Short: "Set the active remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := updateRemotes(func(c *RemotesConfig) error { return c.Use(args[0]) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRemotesConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			if len(cfg.Remotes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  NAME\tURL\tGRPC\tNATS")
			for _, name := range cfg.Names() {
				r := cfg.Remotes[name]
				marker := "  "
				if name == cfg.Active {
					marker = "* "
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, dash(r.GRPCAddr), dash(r.NATSURL))
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show [<name>]",
		Short: "Show one remote (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRemotesConfig()
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			name, r, err := cfg.Lookup(name)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), r)
			}
			suffix := ""
			if name == cfg.Active {
				suffix = " (active)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n  url:       %s\n  grpc_addr: %s\n  nats_url:  %s\n",
				name, suffix, r.URL, dash(r.GRPCAddr), dash(r.NATSURL))
			return nil
		},
	}

	remoteCmd.AddCommand(add, remove, use, list, show)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
