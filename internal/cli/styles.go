package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Color Palette ---
var (
	colorPrimary   = lipgloss.Color("#7D56F4") // Indigo/Purple
	colorSecondary = lipgloss.Color("#04B575") // Green
	colorError     = lipgloss.Color("#FF5F87") // Pink/Red
	colorWarning   = lipgloss.Color("#FFAF00") // Gold
	colorSubtle    = lipgloss.Color("#767676") // Gray
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleSection = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleValue  = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	styleSubtle = lipgloss.NewStyle().Foreground(colorSubtle)
	styleError  = lipgloss.NewStyle().Foreground(colorError)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarning)
)
