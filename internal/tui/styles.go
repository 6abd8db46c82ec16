package tui

import "github.com/charmbracelet/lipgloss"

var (
	subtitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	heroAccentColor        = lipgloss.Color("#2ec4b6")
	heroDeepColor          = lipgloss.Color("#06202a")
	heroTextColor          = lipgloss.Color("#e8fbf8")
	heroSecondaryTextColor = lipgloss.Color("#8fd9cf")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	compactTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroDeepColor).Padding(0, 2)
	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	formBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Padding(1, 2)
	cardBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 2)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	logoFaceStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroDeepColor)
	logoShadowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#021015"))
	logoContainerStyle = lipgloss.NewStyle().Padding(0, 1)

	badgePendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	badgeProcessingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	badgeCompletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#a3be8c")).Padding(0, 1)
	badgeFailedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2")).Background(lipgloss.Color("#bf616a")).Padding(0, 1)

	logoArtLines = []string{
		"██████╗   ███████╗   █████╗   ██████╗   ██████╗   ██╗  ██╗        ██████╗   ████████╗  ",
		"██╔══██╗  ██╔════╝  ██╔══██╗  ██╔══██╗  ██╔══██╗  ██║  ██║       ██╔═══██╗  ╚══██╔══╝  ",
		"██████╔╝  █████╗    ███████║  ██║  ██║  ██████╔╝  ██║  ██║       ██║   ██║     ██║     ",
		"██╔══██╗  ██╔══╝    ██╔══██║  ██║  ██║  ██╔═══╝   ██║  ██║       ██║   ██║     ██║     ",
		"██║  ██║  ███████╗  ██║  ██║  ██████╔╝  ██║       ██║  ███████╗  ╚██████╔╝     ██║     ",
		"╚═╝  ╚═╝  ╚══════╝  ╚═╝  ╚═╝  ╚═════╝   ╚═╝       ╚═╝  ╚══════╝   ╚═════╝      ╚═╝     ",
	}
)
