package helpview

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-assistant/internal/keys"
	"github.com/nhle/mail-assistant/internal/theme"
)

// Model is the help overlay: keyboard shortcuts plus the chat commands the
// assistant understands.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

type commandRef struct {
	input string
	desc  string
}

var commandRefs = []commandRef{
	{"/menu", "show the action menu"},
	{"/start", "same as /menu"},
	{"check my inbox", "list recent messages"},
	{"write an email ...", "start a new draft"},
}

func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the shortcut list and the chat command reference inside a
// single bordered panel.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)
	inputStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	parts := []string{
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		sectionStyle.Render("In the chat"),
	}
	for _, c := range commandRefs {
		line := inputStyle.Render(c.input) + "  " + theme.HelpStyle.Render(c.desc)
		parts = append(parts, line)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return theme.BorderStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
