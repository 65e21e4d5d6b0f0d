package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should get ANSI colors, honoring
// NO_COLOR, CLICOLOR_FORCE and CLICOLOR before falling back to TTY detection.
func ShouldUseColor() bool {
	return colorEnabled(os.Getenv, func() bool { return term.IsTerminal(int(os.Stdout.Fd())) })
}

func colorEnabled(getenv func(string) string, isTTY func() bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.TrimSpace(getenv("CLICOLOR_FORCE")) {
	case "", "0":
	default:
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return isTTY()
}
