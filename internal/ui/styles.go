package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#4CAF50")
	Warning   = lipgloss.Color("#FFB74D")
	Error     = lipgloss.Color("#F44336")
	Muted     = lipgloss.Color("#90A4AE")

	BorderColor = lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#30363D"}
)

// BannerWidth matches the 80 column step separators of the console output.
const BannerWidth = 80

var (
	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Border(lipgloss.ThickBorder(), true, false).
			BorderForeground(Secondary).
			Width(BannerWidth).
			Padding(0, 1)

	NoteStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	SummaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)
)
