package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/ui"
)

// helpRule restyles one kind of token in cobra's plain help text. The
// pattern's submatches are passed to paint, which returns the replacement.
type helpRule struct {
	re    *regexp.Regexp
	paint func(m []string) string
}

var helpRules = []helpRule{
	// Group and section headers ("Site config:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(m []string) string {
		return ui.RenderAccent(m[1])
	}},
	// Command names in the command list.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(m []string) string {
		return m[1] + ui.RenderCommand(m[2]) + m[3]
	}},
	// Flag value types ("--poll duration").
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|strings)\b`), func(m []string) string {
		return m[1] + ui.RenderMuted(m[2])
	}},
	// Defaults ("(default 30s)", `(default "http")`).
	{regexp.MustCompile(`\(default ("[^"]*"|[^)\s]+)\)`), func(m []string) string {
		return ui.RenderMuted(m[0])
	}},
}

// colorizedHelpFunc prints the long description and usage, colorized when
// stdout is a color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cmd.Long != "" {
			fmt.Fprintln(out, strings.TrimSpace(cmd.Long)+"\n")
		}
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.paint(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}
