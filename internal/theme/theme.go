package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// UserLineStyle renders the owner's side of the conversation.
var UserLineStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// AssistantLineStyle renders the assistant's side of the conversation.
var AssistantLineStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// OptionStyle is the base style for an inline action button.
var OptionStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Foreground(ColorBlue).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SelectedOptionStyle highlights the focused inline action button.
var SelectedOptionStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// NotificationStyle returns a color-coded style for the given notification
// kind label.
func NotificationStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch kind {
	case "full_text":
		return base.Foreground(ColorGreen)
	case "summary":
		return base.Foreground(ColorYellow)
	case "auth_warning":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// PollStateStyle returns a color-coded style for the watcher state shown
// in the status bar.
func PollStateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case "running":
		return base.Foreground(ColorYellow)
	case "auth_failed":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGreen)
	}
}
