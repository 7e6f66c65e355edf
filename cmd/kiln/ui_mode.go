package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode mirrors the --ui flag. Auto defers the decision to a TTY check
// at startup.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// shouldUseTUI resolves the mode to a concrete choice. Only stdout
// matters here; stderr keeps plain diagnostics either way.
func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOff:
		return false
	case uiModeOn:
		return true
	}
	return isTerminal(os.Stdout)
}
