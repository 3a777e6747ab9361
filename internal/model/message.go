package model

import (
	"net/mail"
	"strings"
	"time"
)

// MessageRecord is a snapshot of one mailbox item. It is constructed fresh
// on every fetch and never mutated afterwards.
type MessageRecord struct {
	// ID is the provider's stable message identifier. It is opaque and
	// only compared for equality; no ordering is assumed.
	ID string `json:"id"`

	// SenderDisplay is the human-readable sender label (name part when
	// available, otherwise the bare address).
	SenderDisplay string `json:"sender_display"`

	// SenderAddress is the reply-capable address, either a bare address
	// or the full "Name <addr>" form.
	SenderAddress string `json:"sender_address"`

	// Subject may be empty.
	Subject string `json:"subject"`

	// Body is the decoded plain-text content. When full-body decoding
	// yields nothing it falls back to the provider snippet.
	Body string `json:"body"`

	// Date is when the message was sent.
	Date time.Time `json:"date"`
}

// SendResult reports the outcome of a send operation.
type SendResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// ReplyAddress extracts the bare address portion of SenderAddress.
// Returns an empty string when the header cannot be parsed.
func (m *MessageRecord) ReplyAddress() string {
	addr := strings.TrimSpace(m.SenderAddress)
	if addr == "" {
		return ""
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		// Bare addresses without angle brackets still parse above;
		// anything else is unusable as a recipient.
		return ""
	}
	return parsed.Address
}

// ReplySubject returns the subject line for a reply to this message,
// prefixing "Re: " unless the original subject already carries it.
func (m *MessageRecord) ReplySubject() string {
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return "Re: (no subject)"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// WordCount counts whitespace-delimited words in s. The Watcher uses it to
// pick between the full-text and summary notification variants.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
