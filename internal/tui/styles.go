package tui

import "github.com/charmbracelet/lipgloss"

// Status labels shown in the board.
const (
	StatusPassing = "PASS"
	StatusReady   = "READY"
	StatusBlocked = "BLOCKED"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#45B7D1"))

	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	cautionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8E53"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("#4ECDC4"))
)

// statusStyle returns the style for a status label.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusPassing:
		return passStyle
	case StatusReady:
		return readyStyle
	default:
		return blockedStyle
	}
}
