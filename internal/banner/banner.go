package banner

import (
	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(lipgloss.Color("#7D56F4")).
		Bold(true)

	ascii := `
    __ _    ______                  __
   / /| |  / / __ )___  ____  _____/ /_
  / //_/ | / / __  / _ \/ __ \/ ___/ __ \
 / ,<  | |/ / /_/ /  __/ / / / /__/ / / /
/_/|_| |___/_____/\___/_/ /_/\___/_/ /_/ `

	return "\n" + style.Render(ascii) + "\n"
}
