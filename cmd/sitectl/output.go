package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/sitesync/internal/client"
	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printConfigSummary(w io.Writer, snap *model.Snapshot) {
	cfg := snap.Config
	fmt.Fprintf(w, "Version:     %d\n", snap.Version)
	fmt.Fprintf(w, "Company:     %s\n", cfg.Company.Name)
	if cfg.Company.Email != "" || cfg.Company.Phone != "" {
		fmt.Fprintf(w, "Contact:     %s\n", strings.Join(nonEmpty(cfg.Company.Email, cfg.Company.Phone), ", "))
	}
	fmt.Fprintf(w, "Primary:     %s\n", ui.RenderSwatch(cfg.Theme.PrimaryColor))
	fmt.Fprintf(w, "Secondary:   %s\n", ui.RenderSwatch(cfg.Theme.SecondaryColor))
	fmt.Fprintf(w, "Accent:      %s\n", ui.RenderSwatch(cfg.Theme.AccentColor))

	active := model.ActiveModules(cfg)
	keys := make([]string, len(active))
	for i, m := range active {
		keys[i] = m.Key
	}
	fmt.Fprintf(w, "Modules:     %s\n", strings.Join(keys, ", "))

	var on []string
	for name, enabled := range cfg.Features {
		if enabled {
			on = append(on, name)
		}
	}
	sort.Strings(on)
	fmt.Fprintf(w, "Features:    %s\n", strings.Join(on, ", "))
}

func printModules(w io.Writer, cat *client.ModuleCatalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATE\tPATH\tNAME")
	for _, m := range cat.Active {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Key, ui.RenderAccent("active"), m.Path, m.Name)
	}
	for _, m := range cat.Locked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Key, ui.RenderMuted("locked"), m.Path, m.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d active, %d locked (version %d)\n", cat.ActiveCount, len(cat.Locked), cat.Version)
	return nil
}

func printSubscribers(w io.Writer, subs []client.SubscriberInfo) error {
	if len(subs) == 0 {
		fmt.Fprintln(w, "no subscribers")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tURL\tDELIVERED\tFAILED\tLAST\tEXPIRES")
	for _, s := range subs {
		last := "-"
		if s.Stats.LastStatus != 0 {
			last = fmt.Sprintf("%d", s.Stats.LastStatus)
		} else if s.Stats.LastError != "" {
			last = "error"
		}
		expires := "never"
		if s.ExpiresAt != nil {
			expires = s.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", s.ID, s.CallbackURL, s.Stats.Delivered, s.Stats.Failed, last, expires)
	}
	return tw.Flush()
}

func printEvent(w io.Writer, ev model.Event) {
	ts := ev.Timestamp.Local().Format("15:04:05")
	switch ev.Kind {
	case model.EventModuleToggled:
		state := "disabled"
		if ev.Enabled != nil && *ev.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(w, "%s  %s  v%d  %s %s\n", ui.RenderMuted(ts), ui.RenderAccent(string(ev.Kind)), ev.Version, ev.Module, state)
	case model.EventThemeUpdated:
		primary := ""
		if ev.Theme != nil {
			primary = ui.RenderSwatch(ev.Theme.PrimaryColor)
		}
		fmt.Fprintf(w, "%s  %s  v%d  primary %s\n", ui.RenderMuted(ts), ui.RenderAccent(string(ev.Kind)), ev.Version, primary)
	default:
		fmt.Fprintf(w, "%s  %s  v%d\n", ui.RenderMuted(ts), ui.RenderAccent(string(ev.Kind)), ev.Version)
	}
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
