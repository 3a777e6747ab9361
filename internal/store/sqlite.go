package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-assistant/internal/model"
)

// checkpointKey is the watcher_state row holding the last seen mailbox head.
const checkpointKey = "last_seen_id"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateNotification inserts a new notification.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) error {
	const query = `
		INSERT INTO notifications (id, kind, message_id, sender, subject, body, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, string(n.Kind), n.MessageID, n.Sender, n.Subject, n.Body,
		n.Read, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification %s: %w", n.ID, err)
	}
	return nil
}

// GetUnreadNotifications returns all unread notifications, oldest first.
func (s *SQLiteStore) GetUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	const query = `
		SELECT id, kind, message_id, sender, subject, body, read, created_at
		FROM notifications
		WHERE read = 0
		ORDER BY created_at ASC`

	var out []model.Notification
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("querying unread notifications: %w", err)
	}
	return out, nil
}

// GetNotificationByID returns one notification, or nil when absent.
func (s *SQLiteStore) GetNotificationByID(ctx context.Context, id string) (*model.Notification, error) {
	const query = `
		SELECT id, kind, message_id, sender, subject, body, read, created_at
		FROM notifications
		WHERE id = ?`

	var n model.Notification
	err := s.db.GetContext(ctx, &n, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification %s: %w", id, err)
	}
	return &n, nil
}

// MarkNotificationRead flags a notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// LoadCheckpoint returns the persisted mailbox head, or "" when the
// watcher has never saved one.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM watcher_state WHERE key = ?", checkpointKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading checkpoint: %w", err)
	}
	return value, nil
}

// SaveCheckpoint persists the mailbox head the watcher has acknowledged.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, lastSeenID string) error {
	const query = `
		INSERT INTO watcher_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, checkpointKey, lastSeenID); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// RecordOutgoing appends one sent email to the outgoing log.
func (s *SQLiteStore) RecordOutgoing(ctx context.Context, out model.OutgoingEmail) error {
	const query = `
		INSERT INTO outgoing (id, recipient, subject, body, reply_to_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		out.ID, out.Recipient, out.Subject, out.Body, out.ReplyToID, out.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording outgoing email %s: %w", out.ID, err)
	}
	return nil
}

// GetRecentOutgoing returns the most recently sent emails, newest first.
func (s *SQLiteStore) GetRecentOutgoing(ctx context.Context, limit int) ([]model.OutgoingEmail, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, recipient, subject, body, reply_to_id, sent_at
		FROM outgoing
		ORDER BY sent_at DESC
		LIMIT ?`

	var out []model.OutgoingEmail
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("querying outgoing log: %w", err)
	}
	return out, nil
}
