package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
	"github.com/nhle/mail-assistant/tests/testutil"
)

func notification(kind model.NotificationKind) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		MessageID: "4711",
		Sender:    "Bob Smith",
		Subject:   "Lunch tomorrow?",
		Body:      "Are you free around noon?",
		CreatedAt: time.Now(),
	}
}

func TestNotificationLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	n := notification(model.NotificationFullText)
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}

	unread, err := s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("get unread: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("unread count = %d, want 1", len(unread))
	}
	if unread[0].ID != n.ID || unread[0].Kind != model.NotificationFullText {
		t.Errorf("got %+v", unread[0])
	}
	if unread[0].MessageID != "4711" {
		t.Errorf("message id = %q", unread[0].MessageID)
	}

	if err := s.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err = s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("get unread after mark: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("unread count after mark = %d, want 0", len(unread))
	}

	got, err := s.GetNotificationByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || !got.Read {
		t.Errorf("got %+v, want read notification", got)
	}
}

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	n := testutil.SeedNotification(t, s, model.NotificationSummary, "4712")

	for i := 0; i < 2; i++ {
		if err := s.MarkNotificationRead(ctx, n.ID); err != nil {
			t.Fatalf("mark read attempt %d: %v", i+1, err)
		}
	}

	got, err := s.GetNotificationByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || !got.Read {
		t.Errorf("got %+v, want read notification", got)
	}
}

func TestGetNotificationByIDMissing(t *testing.T) {
	s := testutil.NewTestStore(t)

	got, err := s.GetNotificationByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestUnreadNotificationsOrderedOldestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		n := notification(model.NotificationSummary)
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		ids = append(ids, n.ID)
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	unread, err := s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("get unread: %v", err)
	}
	if len(unread) != 3 {
		t.Fatalf("unread count = %d, want 3", len(unread))
	}
	for i, n := range unread {
		if n.ID != ids[i] {
			t.Errorf("position %d: got %s, want %s", i, n.ID, ids[i])
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	head, err := s.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if head != "" {
		t.Errorf("fresh checkpoint = %q, want empty", head)
	}

	if err := s.SaveCheckpoint(ctx, "1042"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, "1043"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	head, err = s.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if head != "1043" {
		t.Errorf("checkpoint = %q, want 1043", head)
	}
}

func TestOutgoingLogNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		out := model.OutgoingEmail{
			ID:        uuid.NewString(),
			Recipient: "bob@example.com",
			Subject:   "Re: Lunch tomorrow?",
			Body:      "Sounds good.",
			ReplyToID: "4711",
			SentAt:    base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.RecordOutgoing(ctx, out); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	log, err := s.GetRecentOutgoing(ctx, 2)
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log length = %d, want 2", len(log))
	}
	if !log[0].SentAt.After(log[1].SentAt) {
		t.Errorf("log not newest first: %v then %v", log[0].SentAt, log[1].SentAt)
	}
	if log[0].ReplyToID != "4711" {
		t.Errorf("reply_to_id = %q", log[0].ReplyToID)
	}
}

var _ store.Store = (*store.SQLiteStore)(nil)
