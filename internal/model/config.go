package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the IMAP/SMTP connection settings for the single
// configured mailbox.
type MailboxConfig struct {
	// IMAPHost and IMAPPort locate the IMAP server used for reading.
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`

	// SMTPHost and SMTPPort locate the submission server used for sending.
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// Username is the account address; the password lives in the keyring.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; when false, STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// UnreadOnly restricts the Watcher's head lookup to unseen messages.
	UnreadOnly bool `mapstructure:"unread_only" yaml:"unread_only"`
}

// WatcherConfig controls the polling loop and display strategy.
type WatcherConfig struct {
	// PollIntervalSec is the fixed poll period.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// InitialDelaySec delays the first poll after startup.
	InitialDelaySec int `mapstructure:"initial_delay_sec" yaml:"initial_delay_sec"`

	// SummaryWordLimit is the word count above which a new message is
	// summarized instead of shown in full. Exactly this many words still
	// shows the full text.
	SummaryWordLimit int `mapstructure:"summary_word_limit" yaml:"summary_word_limit"`

	// PersistCheckpoint carries the last seen message id across restarts.
	// Off by default: a restart re-seeds silently.
	PersistCheckpoint bool `mapstructure:"persist_checkpoint" yaml:"persist_checkpoint"`
}

// AIConfig holds settings for the AI collaborator.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// OwnerID is the single chat identity allowed to operate the
	// assistant; events from anyone else are rejected.
	OwnerID string `mapstructure:"owner_id" yaml:"owner_id"`

	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Watcher WatcherConfig `mapstructure:"watcher" yaml:"watcher"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`

	// InboxListLimit caps the "Inbox Overview" listing.
	InboxListLimit int `mapstructure:"inbox_list_limit" yaml:"inbox_list_limit"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailassist/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailassist", "config.yaml")
}

// DefaultDBPath returns the default path for the local database.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailassist.db")
	}
	return filepath.Join(home, ".config", "mailassist", "mailassist.db")
}

// DefaultLogPath returns the default path for the application log file.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailassist.log")
	}
	return filepath.Join(home, ".config", "mailassist", "mailassist.log")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		OwnerID: "owner",
		Mailbox: MailboxConfig{
			IMAPPort: "993",
			SMTPPort: "465",
			TLS:      true,
		},
		Watcher: WatcherConfig{
			PollIntervalSec:  60,
			InitialDelaySec:  10,
			SummaryWordLimit: 50,
		},
		AI: AIConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		InboxListLimit: 5,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("owner_id", "owner")
	v.SetDefault("mailbox.imap_port", "993")
	v.SetDefault("mailbox.smtp_port", "465")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("watcher.poll_interval_sec", 60)
	v.SetDefault("watcher.initial_delay_sec", 10)
	v.SetDefault("watcher.summary_word_limit", 50)
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("inbox_list_limit", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Watcher.PollIntervalSec <= 0 {
		cfg.Watcher.PollIntervalSec = 60
	}
	if cfg.Watcher.SummaryWordLimit <= 0 {
		cfg.Watcher.SummaryWordLimit = 50
	}
	if cfg.InboxListLimit <= 0 {
		cfg.InboxListLimit = 5
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("owner_id", cfg.OwnerID)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("watcher", cfg.Watcher)
	v.Set("ai", cfg.AI)
	v.Set("inbox_list_limit", cfg.InboxListLimit)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Configured reports whether the mailbox settings are complete enough to
// connect. Used to drive the first-run setup form.
func (c *AppConfig) Configured() bool {
	mb := c.Mailbox
	return mb.IMAPHost != "" && mb.SMTPHost != "" && mb.Username != ""
}
