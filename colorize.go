package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/coldforge/syncpod/internal/reconcile"
)

// colorEnabled mirrors the style-detection pattern modctl's doctor command
// uses lipgloss for: styles are built unconditionally, but only applied when
// stdout is an interactive terminal, so redirected/piped output stays plain.
func colorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// colorizeStatus renders a Status with the same color scheme across status,
// refresh, and resolve output: green for success, yellow for in-flight,
// red for failure.
func colorizeStatus(s reconcile.Status) string {
	text := s.String()

	if !colorEnabled() {
		return text
	}

	switch s {
	case reconcile.StatusSuccess, reconcile.StatusAdded, reconcile.StatusDeleted:
		return okStyle.Render(text)
	case reconcile.StatusWaitingUser, reconcile.StatusWaitingQueue:
		return warnStyle.Render(text)
	case reconcile.StatusFailed:
		return errStyle.Render(text)
	default:
		return text
	}
}
