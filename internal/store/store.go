package store

import (
	"context"

	"github.com/nhle/mail-assistant/internal/model"
)

// Store defines the persistence interface for notifications, watcher
// checkpoints, and the outgoing-email log.
type Store interface {
	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// === Watcher checkpoint ===

	// LoadCheckpoint returns the last acknowledged mailbox head, or ""
	// when no checkpoint has been saved yet.
	LoadCheckpoint(ctx context.Context) (string, error)
	SaveCheckpoint(ctx context.Context, lastSeenID string) error

	// === Outgoing log ===

	RecordOutgoing(ctx context.Context, out model.OutgoingEmail) error
	GetRecentOutgoing(ctx context.Context, limit int) ([]model.OutgoingEmail, error)
}
