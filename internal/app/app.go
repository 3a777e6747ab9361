// Package app is the root Bubble Tea model: it routes between the
// conversation, setup, and help views, runs the inbox poller, and
// bridges assistant replies and watcher notifications into the UI.
package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-assistant/internal/assistant"
	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/keys"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/theme"
	"github.com/nhle/mail-assistant/internal/ui"
	"github.com/nhle/mail-assistant/internal/ui/chatpanel"
	"github.com/nhle/mail-assistant/internal/ui/helpview"
	"github.com/nhle/mail-assistant/internal/ui/setupform"
	"github.com/nhle/mail-assistant/internal/watch"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewChat ViewState = iota
	ViewSetup
	ViewHelp
)

// repliesMsg carries assistant output back into the UI.
type repliesMsg struct {
	posts []chat.Post
}

// rebuiltMsg reports the outcome of rebuilding the backend after setup.
type rebuiltMsg struct {
	assistant *assistant.Assistant
	poller    *watch.Poller
	err       error
}

// RebuildFunc recreates the assistant and poller from a fresh config.
// The app calls it after the setup form saves new settings.
type RebuildFunc func(cfg *model.AppConfig) (*assistant.Assistant, *watch.Poller, error)

// eventTimeout bounds one assistant dispatch, which may involve both the
// mailbox and the AI service.
const eventTimeout = 60 * time.Second

// Model is the root Bubble Tea model that manages view routing, layout,
// and the background poller.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	cfg          *model.AppConfig
	keys         *keys.KeyMap

	assistant *assistant.Assistant
	poller    *watch.Poller
	rebuild   RebuildFunc

	chatView  chatpanel.Model
	setupView setupform.Model
	helpView  helpview.Model

	ready     bool
	statusMsg string
}

// New creates the root application model. assistant and poller may be nil
// when the mailbox is not configured yet; the app then opens with the
// setup form and uses rebuild once it completes.
func New(cfg *model.AppConfig, a *assistant.Assistant, p *watch.Poller, rebuild RebuildFunc) Model {
	k := keys.DefaultKeyMap()

	view := ViewChat
	if !cfg.Configured() || a == nil {
		view = ViewSetup
	}

	return Model{
		currentView: view,
		cfg:         cfg,
		keys:        k,
		assistant:   a,
		poller:      p,
		rebuild:     rebuild,
		chatView:    chatpanel.New(cfg.OwnerID, k, 80, 24),
		setupView:   setupform.New(cfg, 80),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init starts the chat panel and, when configured, the background poller.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.chatView.Init()}
	if m.currentView == ViewSetup {
		cmds = append(cmds, m.setupView.Init())
	}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.chatView.SetSize(contentWidth, contentHeight+m.layout.InputHeight)
		m.setupView.SetSize(contentWidth)
		m.helpView.SetSize(contentWidth, contentHeight)
		// Forward to the active view so huh forms can calculate layout.
		return m.updateActiveView(msg)

	case chatpanel.SubmitMsg:
		return m, m.dispatch(msg.Event)

	case repliesMsg:
		m.chatView.ApplyPosts(msg.posts)
		return m, nil

	case watch.NotificationMsg:
		n := msg.Notification
		cmds := []tea.Cmd{m.handleNotification(&n)}
		if m.poller != nil {
			cmds = append(cmds, m.poller.WaitForNext())
		}
		return m, tea.Batch(cmds...)

	case setupform.DoneMsg:
		if msg.Config == nil {
			// Aborted; leave setup only if we already have a backend.
			if m.assistant != nil {
				m.currentView = ViewChat
			}
			return m, nil
		}
		m.cfg = msg.Config
		return m, m.rebuildBackend(msg.Config)

	case rebuiltMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Setup failed: %v", msg.err)
			return m, nil
		}
		if m.poller != nil {
			m.poller.Stop()
		}
		m.assistant = msg.assistant
		m.poller = msg.poller
		m.statusMsg = ""
		m.currentView = ViewChat
		cmds := []tea.Cmd{m.chatView.Focus()}
		if m.poller != nil {
			cmds = append(cmds, m.poller.Start())
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		// Global keys that work regardless of current view.
		switch msg.String() {
		case "ctrl+c":
			if m.poller != nil {
				m.poller.Stop()
			}
			return m, tea.Quit

		case "ctrl+h":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewChat {
				m.previousView = m.currentView
				m.currentView = ViewHelp
			}
			return m, nil

		case "ctrl+r":
			if m.currentView == ViewChat && m.poller != nil {
				m.poller.RefreshNow()
			}
			return m, nil

		case "ctrl+s":
			if m.currentView == ViewChat {
				m.previousView = m.currentView
				m.currentView = ViewSetup
				m.setupView = setupform.New(m.cfg, m.layout.Width)
				return m, m.setupView.Init()
			}

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewChat:
		m.chatView, cmd = m.chatView.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// dispatch runs one chat event through the assistant off the event loop.
func (m Model) dispatch(ev chat.Event) tea.Cmd {
	a := m.assistant
	return func() tea.Msg {
		if a == nil {
			return repliesMsg{posts: []chat.Post{
				chat.Send("The mailbox is not configured yet. Press ctrl+s to set it up."),
			}}
		}
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		return repliesMsg{posts: a.HandleEvent(ctx, ev)}
	}
}

// handleNotification renders a watcher notification into the conversation.
func (m Model) handleNotification(n *model.Notification) tea.Cmd {
	a := m.assistant
	return func() tea.Msg {
		if a == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		return repliesMsg{posts: a.HandleNotification(ctx, n)}
	}
}

// rebuildBackend recreates the assistant and poller from a saved config.
func (m Model) rebuildBackend(cfg *model.AppConfig) tea.Cmd {
	rebuild := m.rebuild
	return func() tea.Msg {
		if rebuild == nil {
			return rebuiltMsg{err: fmt.Errorf("no backend factory configured")}
		}
		a, p, err := rebuild(cfg)
		return rebuiltMsg{assistant: a, poller: p, err: err}
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mail Assistant", m.watchStatus())

	var content, input string
	switch m.currentView {
	case ViewChat:
		content = m.chatView.View()
		input = m.chatView.InputView()
	case ViewSetup:
		content = m.setupView.View()
	case ViewHelp:
		content = m.helpView.View()
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, content, input, statusBar)
}

// watchStatus summarizes the poller for the header.
func (m Model) watchStatus() string {
	if m.poller == nil {
		return "mailbox not configured"
	}

	status := m.poller.GetStatus()
	label := theme.PollStateStyle(status.State.String()).
		Render(status.State.String())
	if status.LastPoll.IsZero() {
		return "watch: " + label
	}
	return fmt.Sprintf("watch: %s · last check %s",
		label, status.LastPoll.Format("15:04:05"))
}

// keyHints builds the status bar hint line for the active view.
func (m Model) keyHints() string {
	if m.statusMsg != "" {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewSetup:
		return "enter: next · esc: cancel · ctrl+c: quit"
	case ViewHelp:
		return "esc: back · ctrl+c: quit"
	default:
		return "enter: send · tab: buttons · ctrl+r: check mail · ctrl+h: help · ctrl+c: quit"
	}
}
