package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

var getCmd = &cobra.Command{
	Use:     "get",
	Short:   "Show the current site config",
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := reader.GetConfig(context.Background())
		if err != nil {
			return fmt.Errorf("getting config: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), snap.Config)
		}
		printConfigSummary(cmd.OutOrStdout(), snap)
		return nil
	},
}

var cssCmd = &cobra.Command{
	Use:     "css",
	Short:   "Print the theme stylesheet",
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		css, _, err := reader.GetStylesheet(context.Background())
		if err != nil {
			return fmt.Errorf("getting stylesheet: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), css)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save [<file>]",
	Short: "Save a partial config from a JSON file or stdin",
	Long: `Save merges a partial site config onto the current one.

The patch is read from <file>, or from stdin when <file> is "-" or omitted:

  echo '{"theme":{"primaryColor":"#00ff00"}}' | sitectl save`,
	GroupID: "config",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading patch: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("patch is not valid JSON")
		}
		return savePatch(cmd, json.RawMessage(data))
	},
}

var themeCmd = &cobra.Command{
	Use:     "theme",
	Short:   "Update theme colors and assets",
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		theme := &model.ThemePatch{}
		set := false
		for flag, dst := range map[string]**string{
			"primary":   &theme.PrimaryColor,
			"secondary": &theme.SecondaryColor,
			"accent":    &theme.AccentColor,
			"logo":      &theme.LogoURL,
			"logo-dark": &theme.LogoDarkURL,
			"favicon":   &theme.FaviconURL,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
				set = true
			}
		}
		if !set {
			return fmt.Errorf("nothing to change; pass at least one of --primary, --secondary, --accent, --logo, --logo-dark, --favicon")
		}
		return savePatch(cmd, &model.Patch{Theme: theme})
	},
}

func init() {
	themeCmd.Flags().String("primary", "", "primary color (#rrggbb)")
	themeCmd.Flags().String("secondary", "", "secondary color (#rrggbb)")
	themeCmd.Flags().String("accent", "", "accent/header color (#rrggbb)")
	themeCmd.Flags().String("logo", "", "logo URL")
	themeCmd.Flags().String("logo-dark", "", "dark-mode logo URL")
	themeCmd.Flags().String("favicon", "", "favicon URL")
}

func savePatch(cmd *cobra.Command, patch any) error {
	res, err := httpClient.SaveConfig(context.Background(), patch)
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (version %d)\n", res.Message, res.Version)
	return nil
}

var modulesCmd = &cobra.Command{
	Use:     "modules",
	Short:   "List active and locked modules",
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := httpClient.Modules(context.Background())
		if err != nil {
			return fmt.Errorf("listing modules: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), cat)
		}
		return printModules(cmd.OutOrStdout(), cat)
	},
}

var toggleCmd = &cobra.Command{
	Use:     "toggle <module>",
	Short:   "Flip a module's enabled state (locked modules are unchanged)",
	GroupID: "config",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := httpClient.ToggleModule(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("toggling module: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		switch {
		case res.Locked:
			fmt.Fprintf(cmd.OutOrStdout(), "%s is locked; unchanged\n", res.Module)
		case res.Enabled:
			fmt.Fprintf(cmd.OutOrStdout(), "%s enabled (version %d)\n", res.Module, res.Version)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s disabled (version %d)\n", res.Module, res.Version)
		}
		return nil
	},
}
