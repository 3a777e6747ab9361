package model

import "time"

// NotificationKind distinguishes the notification variants the Watcher emits.
type NotificationKind string

const (
	// NotificationFullText carries the complete message body.
	NotificationFullText NotificationKind = "full_text"

	// NotificationSummary carries an AI summary of a long message and a
	// follow-up action to read the full body.
	NotificationSummary NotificationKind = "summary"

	// NotificationAuthWarning asks the user to re-authenticate. At most
	// one is emitted per failure episode.
	NotificationAuthWarning NotificationKind = "auth_warning"
)

// Notification is an outbound alert about a new mail item (or an
// authentication problem), carrying follow-up actions for the chat surface.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// Kind selects the display variant.
	Kind NotificationKind `json:"kind" db:"kind"`

	// MessageID links the notification to the originating mailbox item.
	// Empty for auth warnings.
	MessageID string `json:"message_id" db:"message_id"`

	// Sender and Subject label the originating message.
	Sender  string `json:"sender" db:"sender"`
	Subject string `json:"subject" db:"subject"`

	// Body is the full message text or the AI summary, depending on Kind.
	Body string `json:"body" db:"body"`

	// Read indicates whether the user has dismissed this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
