// Package compose implements the reply-composition workflow as an explicit
// state machine: instruction gathering, AI draft generation, and the
// review loop (send, manual edit, regenerate) ending in a send or a
// cancellation. Transitions are driven by a dispatch table keyed on
// (state, event kind); the machine never talks to a chat library directly.
package compose

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/model"
)

// State identifies the workflow's position in the conversation.
type State int

const (
	StateIdle State = iota

	// StateAwaitingRecipient and StateAwaitingSubject are the mandatory
	// collection steps for a fresh compose. A reply skips them because
	// the original message supplies both.
	StateAwaitingRecipient
	StateAwaitingSubject

	// StateAwaitingInstruction waits for the user to say what the draft
	// should convey.
	StateAwaitingInstruction

	// StateReviewingDraft presents the current draft with its actions.
	StateReviewingDraft

	// StateAwaitingManualEdit collects verbatim replacement text.
	StateAwaitingManualEdit

	// Terminal states. No further event mutates the context.
	StateSent
	StateCancelled
)

// String returns a short name for logging and tests.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRecipient:
		return "awaiting_recipient"
	case StateAwaitingSubject:
		return "awaiting_subject"
	case StateAwaitingInstruction:
		return "awaiting_instruction"
	case StateReviewingDraft:
		return "reviewing_draft"
	case StateAwaitingManualEdit:
		return "awaiting_manual_edit"
	case StateSent:
		return "sent"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// terminal reports whether no further events apply.
func (s State) terminal() bool {
	return s == StateSent || s == StateCancelled
}

// EventKind identifies the trigger for a transition.
type EventKind int

const (
	// EventStartReply begins a reply to an existing message.
	EventStartReply EventKind = iota

	// EventStartCompose begins a fresh email.
	EventStartCompose

	// EventText is free-form text input; its meaning depends on state.
	EventText

	// EventSend, EventEditManually, and EventRegenerate are the review
	// actions.
	EventSend
	EventEditManually
	EventRegenerate

	// EventCancel abandons the workflow from any non-terminal state.
	EventCancel
)

// Event is one workflow trigger.
type Event struct {
	Kind EventKind

	// Message is the reply target for EventStartReply.
	Message *model.MessageRecord

	// Text carries the input for EventText.
	Text string
}

// Button tokens for the review actions, consumed by the chat surface.
const (
	TokenSendNow    = "send_now"
	TokenEditDraft  = "edit_draft"
	TokenRegenerate = "regenerate"
	TokenCancel     = "cancel"
)

// reviewOptions are the actions presented with every draft preview.
func reviewOptions() []chat.Option {
	return []chat.Option{
		{Token: TokenSendNow, Label: "Send now"},
		{Token: TokenEditDraft, Label: "Edit manually"},
		{Token: TokenRegenerate, Label: "Regenerate"},
		{Token: TokenCancel, Label: "Cancel"},
	}
}

// DraftContext is the state shared across one workflow run. It is created
// on entry and discarded when a terminal state is reached.
type DraftContext struct {
	// Recipient is the destination address; always populated before a
	// send is possible.
	Recipient string

	// SubjectLine defaults to "Re: <original>" for replies.
	SubjectLine string

	// SourceBody is the original message used as AI context; empty for
	// a fresh compose.
	SourceBody string

	// CurrentDraft is the latest AI-produced or user-edited candidate
	// body. Empty until the first successful generation.
	CurrentDraft string
}

// Drafter generates or refines a reply body.
type Drafter interface {
	DraftReply(ctx context.Context, sourceBody, instruction, priorDraft string) (string, error)
}

// Sender submits the finished message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (model.SendResult, error)
}

// transitionKey indexes the dispatch table.
type transitionKey struct {
	state State
	event EventKind
}

// transitionFunc applies one transition and returns the posts to show.
type transitionFunc func(ctx context.Context, ev Event) []chat.Post

// Workflow is the reply-composition state machine for one conversation.
// It is driven from a single goroutine at a time; blocking collaborator
// calls happen inside Handle, so callers dispatch it off the event loop.
type Workflow struct {
	drafter Drafter
	sender  Sender

	state State
	draft *DraftContext

	table map[transitionKey]transitionFunc
}

// New creates an idle workflow.
func New(drafter Drafter, sender Sender) *Workflow {
	w := &Workflow{
		drafter: drafter,
		sender:  sender,
		state:   StateIdle,
	}
	w.table = w.buildTable()
	return w
}

// buildTable wires every legal (state, event) pair to its transition.
func (w *Workflow) buildTable() map[transitionKey]transitionFunc {
	t := map[transitionKey]transitionFunc{
		{StateAwaitingRecipient, EventText}:      w.collectRecipient,
		{StateAwaitingSubject, EventText}:        w.collectSubject,
		{StateAwaitingInstruction, EventText}:    w.generateDraft,
		{StateAwaitingManualEdit, EventText}:     w.applyManualEdit,
		{StateReviewingDraft, EventSend}:         w.sendDraft,
		{StateReviewingDraft, EventEditManually}: w.promptManualEdit,
		{StateReviewingDraft, EventRegenerate}:   w.promptRegenerate,
	}

	// Entry and cancel apply from every non-terminal state; a new start
	// replaces any active context atomically.
	for _, s := range []State{
		StateIdle, StateAwaitingRecipient, StateAwaitingSubject,
		StateAwaitingInstruction, StateReviewingDraft, StateAwaitingManualEdit,
	} {
		t[transitionKey{s, EventStartReply}] = w.startReply
		t[transitionKey{s, EventStartCompose}] = w.startCompose
		if s != StateIdle {
			t[transitionKey{s, EventCancel}] = w.cancel
		}
	}

	// Terminal states accept only a fresh start.
	for _, s := range []State{StateSent, StateCancelled} {
		t[transitionKey{s, EventStartReply}] = w.startReply
		t[transitionKey{s, EventStartCompose}] = w.startCompose
	}

	return t
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	return w.state
}

// Context returns the active draft context, or nil when idle or terminal.
func (w *Workflow) Context() *DraftContext {
	return w.draft
}

// Active reports whether the workflow currently owns the conversation's
// free-text input.
func (w *Workflow) Active() bool {
	return w.state != StateIdle && !w.state.terminal()
}

// Handle applies one event. Unmapped (state, event) pairs are ignored:
// in particular, nothing mutates a terminal conversation.
func (w *Workflow) Handle(ctx context.Context, ev Event) []chat.Post {
	fn, ok := w.table[transitionKey{w.state, ev.Kind}]
	if !ok {
		return nil
	}
	return fn(ctx, ev)
}

// startReply enters the workflow for a reply, seeding the context from the
// target message. When the message carries no usable reply address the
// recipient step is inserted instead of deferring the failure to send time.
func (w *Workflow) startReply(_ context.Context, ev Event) []chat.Post {
	msg := ev.Message
	if msg == nil {
		return []chat.Post{chat.Send("There is no message to reply to.")}
	}

	w.draft = &DraftContext{
		Recipient:   msg.ReplyAddress(),
		SubjectLine: msg.ReplySubject(),
		SourceBody:  msg.Body,
	}

	if w.draft.Recipient == "" {
		w.state = StateAwaitingRecipient
		return []chat.Post{chat.Send(
			"I could not determine who to reply to. " +
				"Who should receive this email?",
		)}
	}

	w.state = StateAwaitingInstruction
	return []chat.Post{chat.Send(fmt.Sprintf(
		"Replying to %s. What should the reply say?", w.draft.Recipient,
	))}
}

// startCompose enters the fresh-compose path, which always collects the
// recipient and subject before the instruction.
func (w *Workflow) startCompose(_ context.Context, _ Event) []chat.Post {
	w.draft = &DraftContext{}
	w.state = StateAwaitingRecipient
	return []chat.Post{chat.Send(
		"Step 1/3 - Who should receive this email? Type the address.",
	)}
}

// collectRecipient validates and stores the destination address.
func (w *Workflow) collectRecipient(_ context.Context, ev Event) []chat.Post {
	addr := strings.TrimSpace(ev.Text)
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return []chat.Post{chat.Send(fmt.Sprintf(
			"%q does not look like an email address. Please try again.", addr,
		))}
	}

	w.draft.Recipient = parsed.Address

	if w.draft.SourceBody != "" {
		// Reply path that detoured here for a missing address.
		w.state = StateAwaitingInstruction
		return []chat.Post{chat.Send(fmt.Sprintf(
			"Replying to %s. What should the reply say?", w.draft.Recipient,
		))}
	}

	w.state = StateAwaitingSubject
	return []chat.Post{chat.Send(fmt.Sprintf(
		"To: %s\n\nStep 2/3 - What is the subject line?", w.draft.Recipient,
	))}
}

// collectSubject stores the subject line.
func (w *Workflow) collectSubject(_ context.Context, ev Event) []chat.Post {
	subject := strings.TrimSpace(ev.Text)
	if subject == "" {
		subject = "(no subject)"
	}
	w.draft.SubjectLine = subject
	w.state = StateAwaitingInstruction
	return []chat.Post{chat.Send(fmt.Sprintf(
		"Subject: %s\n\nStep 3/3 - What should the email say?", subject,
	))}
}

// generateDraft calls the draft collaborator. On failure the workflow
// stays in the instruction state and the previous draft, if any, is left
// untouched.
func (w *Workflow) generateDraft(ctx context.Context, ev Event) []chat.Post {
	instruction := strings.TrimSpace(ev.Text)
	if instruction == "" {
		return []chat.Post{chat.Send(
			"Please tell me what the email should say.",
		)}
	}

	if w.drafter == nil {
		return []chat.Post{chat.Send(
			"Drafting is unavailable until an AI API key is configured.",
		)}
	}

	draft, err := w.drafter.DraftReply(
		ctx, w.draft.SourceBody, instruction, w.draft.CurrentDraft,
	)
	if err != nil {
		return []chat.Post{chat.Send(fmt.Sprintf(
			"Draft generation failed (%v). Please rephrase your "+
				"instruction or try again.", err,
		))}
	}

	w.draft.CurrentDraft = draft
	w.state = StateReviewingDraft
	return []chat.Post{w.previewPost()}
}

// previewPost renders the current draft with the review actions.
func (w *Workflow) previewPost() chat.Post {
	text := fmt.Sprintf(
		"Draft preview\nTo: %s\nSubject: %s\n────────────────\n%s\n────────────────",
		w.draft.Recipient, w.draft.SubjectLine, w.draft.CurrentDraft,
	)
	return chat.Send(text, reviewOptions()...)
}

// sendDraft submits the reviewed draft. A missing recipient fails fast
// before any provider call; a provider failure keeps the review state so
// the user can retry.
func (w *Workflow) sendDraft(ctx context.Context, _ Event) []chat.Post {
	if strings.TrimSpace(w.draft.Recipient) == "" {
		return []chat.Post{chat.Send(
			"No recipient is set for this draft, so it cannot be sent. " +
				"Cancel and start over to pick one.",
		)}
	}

	result, err := w.sender.Send(
		ctx, w.draft.Recipient, w.draft.SubjectLine, w.draft.CurrentDraft,
	)
	if err != nil {
		return []chat.Post{chat.Send(fmt.Sprintf(
			"Sending failed (%v). The draft is unchanged; you can try "+
				"again.", err,
		), reviewOptions()...)}
	}

	recipient := w.draft.Recipient
	w.state = StateSent
	w.draft = nil

	detail := result.Detail
	if detail == "" {
		detail = "sent to " + recipient
	}
	return []chat.Post{chat.Send("Email " + detail + ".")}
}

// promptManualEdit asks for verbatim replacement text.
func (w *Workflow) promptManualEdit(_ context.Context, _ Event) []chat.Post {
	w.state = StateAwaitingManualEdit
	return []chat.Post{chat.Send(
		"Type the exact text you want as the email body.",
	)}
}

// applyManualEdit replaces the draft verbatim, with no AI involvement,
// and returns to review.
func (w *Workflow) applyManualEdit(_ context.Context, ev Event) []chat.Post {
	w.draft.CurrentDraft = ev.Text
	w.state = StateReviewingDraft
	return []chat.Post{w.previewPost()}
}

// promptRegenerate loops back to instruction gathering. SourceBody and the
// current draft are kept so the next instruction is treated as feedback.
func (w *Workflow) promptRegenerate(_ context.Context, _ Event) []chat.Post {
	w.state = StateAwaitingInstruction
	return []chat.Post{chat.Send(
		"How should the draft change? Describe the adjustment.",
	)}
}

// cancel discards the context from any non-terminal state.
func (w *Workflow) cancel(_ context.Context, _ Event) []chat.Post {
	w.state = StateCancelled
	w.draft = nil
	return []chat.Post{chat.Send("Operation cancelled.")}
}
