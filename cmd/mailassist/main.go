package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-assistant/internal/ai"
	"github.com/nhle/mail-assistant/internal/app"
	"github.com/nhle/mail-assistant/internal/assistant"
	"github.com/nhle/mail-assistant/internal/credential"
	imapmailbox "github.com/nhle/mail-assistant/internal/mailbox/imap"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
	"github.com/nhle/mail-assistant/internal/watch"
)

func main() {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	dbPath := model.DefaultDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// Route collaborator logs to a file; stderr belongs to the TUI.
	if f, err := tea.LogToFile(model.DefaultLogPath(), "mailassist"); err == nil {
		defer f.Close()
	}

	rebuild := func(cfg *model.AppConfig) (*assistant.Assistant, *watch.Poller, error) {
		return buildBackend(cfg, st)
	}

	a, p, err := buildBackend(cfg, st)
	if err != nil {
		log.Printf("starting without mailbox backend: %v", err)
	}

	program := tea.NewProgram(
		app.New(cfg, a, p, rebuild),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// buildBackend assembles the mailbox client, AI engine, watcher, poller,
// and assistant from the config and stored credentials. Returns an error
// when the config or credentials are incomplete; the app then opens the
// setup form instead.
func buildBackend(cfg *model.AppConfig, st *store.SQLiteStore) (*assistant.Assistant, *watch.Poller, error) {
	if !cfg.Configured() {
		return nil, nil, fmt.Errorf("mailbox not configured")
	}

	password, err := credential.Get(credential.KeyMailPassword)
	if err != nil || password == "" {
		return nil, nil, fmt.Errorf("mail password unavailable: %w", err)
	}

	mb := imapmailbox.New(cfg.Mailbox, password)

	var engine *ai.Engine
	apiKey, err := credential.Get(credential.KeyAnthropicAPI)
	if err == nil && apiKey != "" {
		engine = ai.New(apiKey, cfg.AI.Model, cfg.AI.MaxTokens)
	} else {
		log.Printf("no AI API key configured; summaries and drafting are disabled")
	}

	var checkpoint watch.CheckpointStore
	if cfg.Watcher.PersistCheckpoint {
		checkpoint = st
	}

	// A nil engine still watches; long bodies then arrive in full.
	var summarizer watch.Summarizer
	if engine != nil {
		summarizer = engine
	}

	watcher := watch.New(
		mb,
		summarizer,
		checkpoint,
		cfg.Watcher.SummaryWordLimit,
		cfg.Mailbox.UnreadOnly,
	)
	watcher.Restore(context.Background())

	poller := watch.NewPoller(
		watcher,
		time.Duration(cfg.Watcher.PollIntervalSec)*time.Second,
		time.Duration(cfg.Watcher.InitialDelaySec)*time.Second,
	)

	var intelligence assistant.Intelligence
	if engine != nil {
		intelligence = engine
	}

	a := assistant.New(
		cfg.OwnerID,
		mb,
		intelligence,
		st,
		cfg.InboxListLimit,
		cfg.Watcher.SummaryWordLimit,
	)

	return a, poller, nil
}
