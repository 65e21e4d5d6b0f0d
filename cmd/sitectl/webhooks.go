package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/client"
	"github.com/alfredjeanlab/sitesync/internal/idgen"
)

var subscribeCmd = &cobra.Command{
	Use:     "subscribe <callback-url>",
	Short:   "Register a webhook callback URL",
	GroupID: "webhooks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		generated := secret == ""
		if generated {
			var err error
			if secret, err = idgen.NewSecret(); err != nil {
				return err
			}
		}
		sub, err := httpClient.Subscribe(context.Background(), args[0], secret)
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		if jsonOutput {
			out := struct {
				*client.Subscription
				Secret string `json:"secret,omitempty"`
			}{Subscription: sub}
			if generated {
				out.Secret = secret
			}
			return printJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s\n", sub.SubscriberID)
		if generated {
			fmt.Fprintf(cmd.OutOrStdout(), "secret %s\n", secret)
		}
		if sub.ExpiresAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "expires %s\n", sub.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:     "unsubscribe <subscriber-id>",
	Short:   "Remove a webhook subscriber",
	GroupID: "webhooks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := httpClient.Unsubscribe(context.Background(), args[0]); err != nil {
			return fmt.Errorf("unsubscribing: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unsubscribed %s\n", args[0])
		return nil
	},
}

var subscribersCmd = &cobra.Command{
	Use:     "subscribers",
	Short:   "List webhook subscribers and their delivery stats",
	GroupID: "webhooks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := httpClient.Subscribers(context.Background())
		if err != nil {
			return fmt.Errorf("listing subscribers: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), subs)
		}
		return printSubscribers(cmd.OutOrStdout(), subs)
	},
}

func init() {
	subscribeCmd.Flags().String("secret", "", "shared secret for signing deliveries (generated and printed when empty)")
}
