package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/normanking/stancegate/internal/pipeline"
	"github.com/normanking/stancegate/internal/stance"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5484D")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A524"))

	stanceStyles = map[stance.Stance]lipgloss.Style{
		stance.Control: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#E5484D")).Bold(true).Padding(0, 1),
		stance.Shield:  lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#F5A524")).Bold(true).Padding(0, 1),
		stance.Lens:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#3E63DD")).Bold(true).Padding(0, 1),
		stance.Sword:   lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#4CAF50")).Bold(true).Padding(0, 1),
	}
)

// setupColor disables styling when requested or when stdout is not a terminal.
func setupColor(disable bool) {
	if disable || termenv.NewOutput(os.Stdout).Profile == termenv.Ascii {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func renderStance(s stance.Stance) string {
	style, ok := stanceStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func renderOutcome(o pipeline.Outcome) string {
	switch o {
	case pipeline.OutcomeAnswered:
		return okStyle.Render(string(o))
	case pipeline.OutcomeAwaitAck:
		return warnStyle.Render(string(o))
	default:
		return failStyle.Render(string(o))
	}
}
