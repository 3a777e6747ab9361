// Package chat defines the transport-neutral conversation surface: inbound
// user events, outbound posts with inline options, and the owner gate.
// The assistant core speaks only these types; the terminal UI is one
// implementation of the surface.
package chat

// EventKind identifies what kind of inbound event the user produced.
type EventKind int

const (
	// EventCommand is an explicit command such as "start" or "menu".
	EventCommand EventKind = iota

	// EventButton is a press of an inline option; Token carries the
	// option's callback token.
	EventButton

	// EventText is free-form typed text.
	EventText
)

// Event is one inbound user action, tagged with the identity it came from.
type Event struct {
	Kind   EventKind
	UserID string

	// Command is set for EventCommand.
	Command string

	// Token is set for EventButton.
	Token string

	// Text is set for EventText.
	Text string

	// SourceMessageID is the outbound message the button belonged to,
	// when the surface tracks one. Used for edits and deletes.
	SourceMessageID string
}

// Option is an inline action attached to an outbound post.
type Option struct {
	// Token is the machine-readable value returned when pressed.
	Token string

	// Label is the human-readable button text.
	Label string
}

// PostKind selects the outbound operation.
type PostKind int

const (
	// PostSend creates a new message in the conversation.
	PostSend PostKind = iota

	// PostEdit replaces the text and options of TargetID.
	PostEdit

	// PostDelete removes TargetID from the conversation.
	PostDelete
)

// Post is one outbound operation against the conversation surface.
type Post struct {
	Kind     PostKind
	Text     string
	Options  []Option
	TargetID string
}

// Send builds a PostSend.
func Send(text string, options ...Option) Post {
	return Post{Kind: PostSend, Text: text, Options: options}
}

// Edit builds a PostEdit targeting the given message.
func Edit(targetID, text string, options ...Option) Post {
	return Post{Kind: PostEdit, TargetID: targetID, Text: text, Options: options}
}

// Delete builds a PostDelete targeting the given message.
func Delete(targetID string) Post {
	return Post{Kind: PostDelete, TargetID: targetID}
}

// Gate enforces the single-owner authorization policy: events from any
// other identity are rejected with a fixed denial and no state change.
type Gate struct {
	owner string
}

// NewGate creates a gate for the configured owner identity.
func NewGate(owner string) Gate {
	return Gate{owner: owner}
}

// Allow reports whether the event's identity is the owner.
func (g Gate) Allow(ev Event) bool {
	return ev.UserID == g.owner
}

// DeniedReply is the fixed response sent to non-owner identities.
func (g Gate) DeniedReply() Post {
	return Send("This assistant is currently serving its owner only.")
}
