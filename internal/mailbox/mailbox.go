package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mail-assistant/internal/model"
)

// AuthError indicates that authentication has failed or expired for the
// mailbox provider. It is returned when a login is rejected.
type AuthError struct {
	Account string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ErrNoMessages is returned by ListLatestID when the mailbox is empty.
var ErrNoMessages = errors.New("mailbox: no messages")

// ListOptions controls head and listing queries.
type ListOptions struct {
	// UnreadOnly restricts results to unseen messages.
	UnreadOnly bool
}

// Mailbox defines the provider contract the assistant core needs. Latency
// and rate limits are the implementation's concern; every method may block
// on network I/O, so callers run them off the chat event loop.
type Mailbox interface {
	// ListLatestID returns the identifier of the most recent message
	// under the provider's default ordering. Returns ErrNoMessages when
	// the mailbox is empty and an AuthError when login fails.
	ListLatestID(ctx context.Context, opts ListOptions) (string, error)

	// ListRecent returns envelope-level records for the most recent
	// messages, newest first. Bodies are not populated.
	ListRecent(ctx context.Context, limit int) ([]model.MessageRecord, error)

	// GetMessage fetches the full record for a message id, including the
	// decoded plain-text body (snippet fallback when decoding yields
	// nothing). Returns nil when the message no longer exists.
	GetMessage(ctx context.Context, id string) (*model.MessageRecord, error)

	// Send submits a message. A non-nil error means the message was not
	// accepted by the submission server.
	Send(ctx context.Context, to, subject, body string) (model.SendResult, error)
}
