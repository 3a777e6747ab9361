package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-assistant/internal/theme"
)

// Layout manages the terminal layout dimensions: a one-line header, the
// conversation area, the input box, and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	InputHeight     int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		InputHeight:     3,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the conversation area,
// accounting for the header, the input box, and the status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.InputHeight - l.StatusBarHeight
	if h < 0 {
		h = 0
	}
	return h
}

// RenderHeader renders the top header bar with a title and watcher status.
func (l Layout) RenderHeader(title string, watchStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(watchStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining the
// header, conversation area, input box, and status bar.
func (l Layout) RenderWithFrame(header, content, input, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		input,
		statusBar,
	)
}
