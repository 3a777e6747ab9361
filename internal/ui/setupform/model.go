// Package setupform is the first-run configuration form: mailbox servers,
// account credentials, and the AI API key. Secrets go to the system
// keyring; everything else is written to the YAML config file.
package setupform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-assistant/internal/credential"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/theme"
)

// DoneMsg signals setup finished; Config is nil when the form was aborted.
type DoneMsg struct {
	Config *model.AppConfig
}

// Model is the Bubble Tea model for the setup form.
type Model struct {
	form *huh.Form

	formIMAPHost string
	formIMAPPort string
	formSMTPHost string
	formSMTPPort string
	formUsername string
	formPassword string
	formTLS      bool
	formUnread   bool
	formAPIKey   string

	statusMsg string
	width     int
}

// New creates the setup form, pre-filled from an existing config when the
// user is editing rather than onboarding.
func New(cfg *model.AppConfig, width int) Model {
	m := Model{
		formTLS: true,
		width:   width,
	}
	if cfg != nil {
		m.formIMAPHost = cfg.Mailbox.IMAPHost
		m.formIMAPPort = cfg.Mailbox.IMAPPort
		m.formSMTPHost = cfg.Mailbox.SMTPHost
		m.formSMTPPort = cfg.Mailbox.SMTPPort
		m.formUsername = cfg.Mailbox.Username
		m.formTLS = cfg.Mailbox.TLS
		m.formUnread = cfg.Mailbox.UnreadOnly
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.formIMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.formIMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("SMTP server hostname").
				Placeholder("smtp.example.com").
				Value(&m.formSMTPHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Description("SMTP server port (e.g., 465)").
				Placeholder("465").
				Value(&m.formSMTPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Email account username").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Email account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Enable TLS encryption for connections").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formTLS),
			huh.NewConfirm().
				Title("Watch unread only").
				Description("Only alert for messages still marked unread").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formUnread),
			huh.NewInput().
				Title("Anthropic API Key").
				Description("Leave empty to use the ANTHROPIC_API_KEY environment variable").
				EchoMode(huh.EchoModePassword).
				Value(&m.formAPIKey),
		),
	).WithWidth(m.formWidth())
}

// Init returns the initial command for the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the setup form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// save persists the credentials to the keyring and the settings to the
// config file, then signals completion.
func (m Model) save() (Model, tea.Cmd) {
	if err := credential.Set(credential.KeyMailPassword, m.formPassword); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving password: %v", err)
		return m, nil
	}
	if key := strings.TrimSpace(m.formAPIKey); key != "" {
		if err := credential.Set(credential.KeyAnthropicAPI, key); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving API key: %v", err)
			return m, nil
		}
	}

	path := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(path)
	if err != nil {
		m.statusMsg = fmt.Sprintf("Error loading config: %v", err)
		return m, nil
	}
	cfg.Mailbox.IMAPHost = m.formIMAPHost
	cfg.Mailbox.IMAPPort = strings.TrimSpace(m.formIMAPPort)
	cfg.Mailbox.SMTPHost = m.formSMTPHost
	cfg.Mailbox.SMTPPort = strings.TrimSpace(m.formSMTPPort)
	cfg.Mailbox.Username = m.formUsername
	cfg.Mailbox.TLS = m.formTLS
	cfg.Mailbox.UnreadOnly = m.formUnread

	if err := model.SaveConfig(path, cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving config: %v", err)
		return m, nil
	}

	return m, func() tea.Msg { return DoneMsg{Config: cfg} }
}

// View renders the setup form.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Mailbox Setup")

	sections := []string{title, m.form.View()}
	if m.statusMsg != "" {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			Render(m.statusMsg))
	}

	return theme.BorderStyle.
		Width(m.formWidth() + 2).
		Render(strings.Join(sections, "\n"))
}

// SetSize updates the form width.
func (m *Model) SetSize(width int) {
	m.width = width
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
