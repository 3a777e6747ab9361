// Package chatpanel renders the assistant conversation: a scrollback of
// posts, inline option buttons, and a text input. It is the terminal
// implementation of the chat surface; everything it emits is a chat.Event
// and everything it displays arrives as chat.Post.
package chatpanel

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/keys"
	"github.com/nhle/mail-assistant/internal/theme"
)

// SubmitMsg asks the parent to dispatch one user event to the assistant.
type SubmitMsg struct {
	Event chat.Event
}

// entry is one rendered conversation message.
type entry struct {
	ID       string
	FromUser bool
	Text     string
	Options  []chat.Option
}

// Model is the conversation panel Bubble Tea model.
type Model struct {
	userID string

	input    textarea.Model
	viewport viewport.Model
	entries  []entry

	// busy is set between submitting an event and receiving the reply;
	// further input is held back until the assistant answers.
	busy bool

	// focusOptions routes arrow keys to the option row of the newest
	// post that carries options.
	focusOptions bool
	optionCursor int

	keys   *keys.KeyMap
	width  int
	height int
}

// New creates the conversation panel.
func New(userID string, k *keys.KeyMap, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Message your assistant... (/menu for actions)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetWidth(width - 4)
	ta.SetHeight(3)
	ta.CharLimit = 2000
	ta.Focus()

	vpHeight := height - 8
	if vpHeight < 4 {
		vpHeight = 4
	}

	vp := viewport.New(width-4, vpHeight)
	vp.Style = lipgloss.NewStyle()

	return Model{
		userID:   userID,
		input:    ta,
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the panel.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeyMsg(key)
	}

	var cmds []tea.Cmd

	var taCmd tea.Cmd
	m.input, taCmd = m.input.Update(msg)
	if taCmd != nil {
		cmds = append(cmds, taCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	if vpCmd != nil {
		cmds = append(cmds, vpCmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		if m.optionEntry() != nil {
			m.focusOptions = !m.focusOptions
			m.optionCursor = 0
			if m.focusOptions {
				m.input.Blur()
			} else {
				m.input.Focus()
			}
			m.refreshViewport()
		}
		return m, nil

	case "up", "down":
		if m.focusOptions {
			m.moveOptionCursor(msg.String())
			m.refreshViewport()
			return m, nil
		}

	case "enter":
		if m.busy {
			return m, nil
		}
		if m.focusOptions {
			return m.pressOption()
		}
		return m.submitText()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// optionEntry returns the newest entry carrying options, or nil.
func (m *Model) optionEntry() *entry {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if len(m.entries[i].Options) > 0 {
			return &m.entries[i]
		}
	}
	return nil
}

func (m *Model) moveOptionCursor(dir string) {
	e := m.optionEntry()
	if e == nil {
		return
	}
	switch dir {
	case "down":
		if m.optionCursor < len(e.Options)-1 {
			m.optionCursor++
		}
	case "up":
		if m.optionCursor > 0 {
			m.optionCursor--
		}
	}
}

// pressOption emits a button event for the focused option.
func (m Model) pressOption() (Model, tea.Cmd) {
	e := m.optionEntry()
	if e == nil || m.optionCursor >= len(e.Options) {
		return m, nil
	}

	ev := chat.Event{
		Kind:            chat.EventButton,
		UserID:          m.userID,
		Token:           e.Options[m.optionCursor].Token,
		SourceMessageID: e.ID,
	}

	m.busy = true
	m.focusOptions = false
	m.optionCursor = 0
	m.input.Focus()
	m.refreshViewport()
	return m, submit(ev)
}

// submitText emits a text or command event from the input box. Lines
// starting with "/" are commands, matching the usual chat convention.
func (m Model) submitText() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	ev := chat.Event{Kind: chat.EventText, UserID: m.userID, Text: text}
	if strings.HasPrefix(text, "/") {
		ev = chat.Event{
			Kind:    chat.EventCommand,
			UserID:  m.userID,
			Command: strings.TrimPrefix(text, "/"),
		}
	}

	m.entries = append(m.entries, entry{
		ID:       uuid.NewString(),
		FromUser: true,
		Text:     text,
	})
	m.busy = true
	m.refreshViewport()
	return m, submit(ev)
}

func submit(ev chat.Event) tea.Cmd {
	return func() tea.Msg {
		return SubmitMsg{Event: ev}
	}
}

// ApplyPosts applies assistant output to the transcript and releases the
// input for the next event.
func (m *Model) ApplyPosts(posts []chat.Post) {
	for _, p := range posts {
		switch p.Kind {
		case chat.PostSend:
			m.entries = append(m.entries, entry{
				ID:      uuid.NewString(),
				Text:    p.Text,
				Options: p.Options,
			})

		case chat.PostEdit:
			for i := range m.entries {
				if m.entries[i].ID == p.TargetID {
					m.entries[i].Text = p.Text
					m.entries[i].Options = p.Options
					break
				}
			}

		case chat.PostDelete:
			for i := range m.entries {
				if m.entries[i].ID == p.TargetID {
					m.entries = append(m.entries[:i], m.entries[i+1:]...)
					break
				}
			}
		}
	}

	m.busy = false
	m.focusOptions = false
	m.optionCursor = 0
	m.refreshViewport()
}

// Busy reports whether an event is still being processed.
func (m Model) Busy() bool {
	return m.busy
}

// refreshViewport re-renders the transcript and scrolls to the bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

// renderConversation builds the transcript display string.
func (m Model) renderConversation() string {
	if len(m.entries) == 0 {
		return theme.HelpStyle.Render(
			"I watch your inbox and help you read and answer email. " +
				"Type /start to begin.",
		)
	}

	active := m.optionEntry()

	var sections []string
	for i := range m.entries {
		e := &m.entries[i]

		if e.FromUser {
			sections = append(sections, theme.UserLineStyle.Render("You:"))
		} else {
			sections = append(sections, theme.UserLineStyle.
				Foreground(theme.ColorBlue).Render("Assistant:"))
		}
		sections = append(sections, theme.AssistantLineStyle.Render(e.Text))

		if len(e.Options) > 0 {
			sections = append(sections, m.renderOptions(e, e == active))
		}
		sections = append(sections, "")
	}

	if m.busy {
		sections = append(sections, theme.HelpStyle.Render("..."))
	}

	return strings.Join(sections, "\n")
}

// renderOptions draws an entry's buttons; only the newest option row is
// selectable, and only while it has focus.
func (m Model) renderOptions(e *entry, isActive bool) string {
	var buttons []string
	for i, opt := range e.Options {
		style := theme.OptionStyle
		if isActive && m.focusOptions && i == m.optionCursor {
			style = theme.SelectedOptionStyle
		}
		buttons = append(buttons, style.Render(opt.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

// View renders the conversation panel without the input box; the parent
// frames them separately.
func (m Model) View() string {
	return m.viewport.View()
}

// InputView renders the input box.
func (m Model) InputView() string {
	return m.input.View()
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 4)

	vpHeight := height - 8
	if vpHeight < 4 {
		vpHeight = 4
	}
	m.viewport.Width = width - 4
	m.viewport.Height = vpHeight
	m.refreshViewport()
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
