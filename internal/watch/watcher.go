// Package watch implements the inbox polling loop: change detection
// against the last observed mailbox head, the auth-warning debounce, and
// the full-text-versus-summary display decision.
package watch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/mailbox"
	"github.com/nhle/mail-assistant/internal/model"
)

// Summarizer condenses a long message body for notification display.
type Summarizer interface {
	Summarize(ctx context.Context, body string) (string, error)
}

// CheckpointStore optionally persists the last seen message id across
// restarts. A nil store means every restart re-seeds silently.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context) (string, error)
	SaveCheckpoint(ctx context.Context, id string) error
}

// Watcher detects new mailbox items and decides the notification payload.
// Poll calls must be serialized by the caller; the internal mutex only
// protects status reads from other goroutines.
type Watcher struct {
	mailbox    mailbox.Mailbox
	summarizer Summarizer
	checkpoint CheckpointStore
	wordLimit  int
	unreadOnly bool

	mu         sync.Mutex
	lastSeenID string
	authWarned bool
}

// New creates a Watcher. wordLimit is the word count above which message
// bodies are summarized; checkpoint may be nil.
func New(
	mb mailbox.Mailbox,
	summarizer Summarizer,
	checkpoint CheckpointStore,
	wordLimit int,
	unreadOnly bool,
) *Watcher {
	if wordLimit <= 0 {
		wordLimit = 50
	}
	return &Watcher{
		mailbox:    mb,
		summarizer: summarizer,
		checkpoint: checkpoint,
		wordLimit:  wordLimit,
		unreadOnly: unreadOnly,
	}
}

// Restore seeds the last seen id from the checkpoint store, when one is
// configured. Called once at startup before the first poll.
func (w *Watcher) Restore(ctx context.Context) {
	if w.checkpoint == nil {
		return
	}
	id, err := w.checkpoint.LoadCheckpoint(ctx)
	if err != nil {
		log.Printf("watch: loading checkpoint: %v", err)
		return
	}
	w.mu.Lock()
	w.lastSeenID = id
	w.mu.Unlock()
}

// LastSeenID returns the most recently observed mailbox head id, or an
// empty string before the first successful poll.
func (w *Watcher) LastSeenID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeenID
}

// Poll runs one observation cycle and returns at most one notification.
// Provider failures are logged and swallowed: the watcher runs unattended
// on a timer and must never let an error kill future polls.
func (w *Watcher) Poll(ctx context.Context) *model.Notification {
	head, err := w.mailbox.ListLatestID(
		ctx, mailbox.ListOptions{UnreadOnly: w.unreadOnly},
	)

	if mailbox.IsAuthError(err) {
		return w.handleAuthFailure()
	}
	if err == mailbox.ErrNoMessages {
		// Login succeeded; an empty mailbox is a valid steady state.
		w.clearAuthWarning()
		return nil
	}
	if err != nil {
		// Never treat a fetch failure as "no new mail": leave
		// lastSeenID untouched and try again next tick.
		log.Printf("watch: listing mailbox head: %v", err)
		return nil
	}

	w.clearAuthWarning()

	w.mu.Lock()
	last := w.lastSeenID
	if last == "" || head != last {
		w.lastSeenID = head
	}
	w.mu.Unlock()

	if last == "" {
		// First poll after startup: seed silently so a restart does
		// not replay a notification for mail the user already saw.
		w.saveCheckpoint(ctx, head)
		return nil
	}
	if head == last {
		return nil
	}

	w.saveCheckpoint(ctx, head)

	msg, err := w.mailbox.GetMessage(ctx, head)
	if err != nil {
		log.Printf("watch: fetching message %s: %v", head, err)
		return nil
	}
	if msg == nil {
		log.Printf("watch: message %s disappeared before fetch", head)
		return nil
	}

	return w.buildNotification(ctx, msg)
}

// handleAuthFailure emits one re-authenticate warning per failure episode.
func (w *Watcher) handleAuthFailure() *model.Notification {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.authWarned {
		return nil
	}
	w.authWarned = true

	return &model.Notification{
		ID:   uuid.NewString(),
		Kind: model.NotificationAuthWarning,
		Body: "Mailbox login failed. Please check your stored " +
			"credentials and re-authenticate.",
		CreatedAt: time.Now(),
	}
}

// clearAuthWarning resets the debounce flag. Recovery is silent.
func (w *Watcher) clearAuthWarning() {
	w.mu.Lock()
	w.authWarned = false
	w.mu.Unlock()
}

// buildNotification picks the display variant for a new message: full text
// up to the word limit, AI summary above it. A summarizer failure falls
// back to the full text rather than suppressing the notification.
func (w *Watcher) buildNotification(
	ctx context.Context, msg *model.MessageRecord,
) *model.Notification {
	n := &model.Notification{
		ID:        uuid.NewString(),
		Kind:      model.NotificationFullText,
		MessageID: msg.ID,
		Sender:    msg.SenderDisplay,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: time.Now(),
	}

	if model.WordCount(msg.Body) <= w.wordLimit || w.summarizer == nil {
		return n
	}

	summary, err := w.summarizer.Summarize(ctx, msg.Body)
	if err != nil {
		log.Printf("watch: summarizing message %s: %v", msg.ID, err)
		return n
	}

	n.Kind = model.NotificationSummary
	n.Body = summary
	return n
}

// saveCheckpoint persists the advanced head id when persistence is on.
func (w *Watcher) saveCheckpoint(ctx context.Context, id string) {
	if w.checkpoint == nil {
		return
	}
	if err := w.checkpoint.SaveCheckpoint(ctx, id); err != nil {
		log.Printf("watch: saving checkpoint: %v", err)
	}
}
