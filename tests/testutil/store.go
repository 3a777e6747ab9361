package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedNotification inserts an unread notification of the given kind for a
// mailbox message and returns it.
func SeedNotification(t *testing.T, s *store.SQLiteStore, kind model.NotificationKind, messageID string) model.Notification {
	t.Helper()

	n := model.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		MessageID: messageID,
		Sender:    "sender@example.com",
		Subject:   "seeded " + messageID,
		Body:      "seeded body",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateNotification(context.Background(), n); err != nil {
		t.Fatalf("seeding notification: %v", err)
	}
	return n
}
