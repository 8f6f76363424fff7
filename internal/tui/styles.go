package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the TUI
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Info      lipgloss.Color
	Surface   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Border    lipgloss.Color
	Accent    lipgloss.Color
}

// DefaultTheme returns a vibrant, modern theme optimized for local terminals
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#7C3AED"), // Violet
	Secondary: lipgloss.Color("#06B6D4"), // Cyan
	Success:   lipgloss.Color("#10B981"), // Emerald
	Warning:   lipgloss.Color("#F59E0B"), // Amber
	Error:     lipgloss.Color("#EF4444"), // Red
	Info:      lipgloss.Color("#3B82F6"), // Blue
	Surface:   lipgloss.Color("#1E293B"), // Slate 800
	Text:      lipgloss.Color("15"),      // White
	TextMuted: lipgloss.Color("250"),     // Light Gray
	Border:    lipgloss.Color("240"),     // Gray
	Accent:    lipgloss.Color("13"),      // Magenta
}

// Styles holds all the styled components
type Styles struct {
	// App-level
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	// Cards
	Card      lipgloss.Style
	CardTitle lipgloss.Style

	// Text
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style

	// Status indicators
	StatusRunning  lipgloss.Style
	StatusFinished lipgloss.Style
	StatusPaused   lipgloss.Style
	StatusError    lipgloss.Style

	// Help
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		// App-level
		App: lipgloss.NewStyle().
			Foreground(theme.Text).
			Padding(1, 2),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			Background(theme.Surface).
			Padding(1, 2).
			MarginBottom(1).
			Border(lipgloss.RoundedBorder(), false, false, true, false).
			BorderForeground(theme.Border),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Text).
			Background(theme.Surface).
			Padding(1, 2).
			MarginTop(1).
			Border(lipgloss.RoundedBorder(), true, false, false, false).
			BorderForeground(theme.Border),

		// Cards
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 2).
			MarginRight(1).
			Width(22),

		CardTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent),

		// Text
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			Padding(0, 1),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.TextMuted).
			Italic(true).
			Padding(0, 1),

		Label: lipgloss.NewStyle().
			Foreground(theme.TextMuted),

		Value: lipgloss.NewStyle().
			Foreground(theme.Text).
			Bold(true),

		Highlight: lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.TextMuted),

		// Status indicators
		StatusRunning: lipgloss.NewStyle().
			Foreground(theme.Info).
			Bold(true),

		StatusFinished: lipgloss.NewStyle().
			Foreground(theme.Success).
			Bold(true),

		StatusPaused: lipgloss.NewStyle().
			Foreground(theme.Warning),

		StatusError: lipgloss.NewStyle().
			Foreground(theme.Error),

		// Help
		HelpKey: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		HelpDesc: lipgloss.NewStyle().
			Foreground(theme.Text),
	}
}

// Icon constants for status display
const (
	IconFinished = "✅"
	IconError    = "❌"
	IconPaused   = "⏸"
	IconFlag     = "🏁"
	IconLogs     = "📋"
	IconHelp     = "❓"
)
