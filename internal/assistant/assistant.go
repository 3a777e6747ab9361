// Package assistant is the conversation core: it routes inbound chat
// events to the inbox views, the reply workflow, or the AI intent
// detector, and renders watcher notifications as chat posts. It knows
// nothing about the terminal UI; everything flows through chat.Event and
// chat.Post.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/ai"
	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/compose"
	"github.com/nhle/mail-assistant/internal/mailbox"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/store"
)

// Button tokens the assistant hands out on its own posts. Workflow review
// tokens (send, edit, regenerate, cancel) live in the compose package.
const (
	tokenMenuInbox   = "menu_inbox"
	tokenMenuCompose = "menu_compose"

	prefixRead     = "read:"
	prefixReadFull = "read_full:"
	prefixReply    = "reply:"
	prefixDismiss  = "dismiss:"
)

// Intelligence is the slice of the AI engine the assistant needs.
type Intelligence interface {
	Summarize(ctx context.Context, body string) (string, error)
	DraftReply(ctx context.Context, sourceBody, instruction, priorDraft string) (string, error)
	DetectIntent(ctx context.Context, text string) (ai.Intent, error)
}

// Assistant wires the owner gate, the mailbox, the AI engine, the reply
// workflow, and the local store into one event handler. Methods block on
// collaborator I/O, so the chat surface dispatches them off its event loop.
type Assistant struct {
	gate      chat.Gate
	mailbox   mailbox.Mailbox
	engine    Intelligence
	store     store.Store
	workflow  *compose.Workflow
	sender    *recordingSender
	listLimit int
	wordLimit int
}

// New builds the assistant. store may be nil when persistence is disabled;
// notification and outgoing records are then kept only in memory by the
// chat surface.
func New(
	owner string,
	mb mailbox.Mailbox,
	engine Intelligence,
	st store.Store,
	listLimit, wordLimit int,
) *Assistant {
	if listLimit <= 0 {
		listLimit = 5
	}
	if wordLimit <= 0 {
		wordLimit = 50
	}

	a := &Assistant{
		gate:      chat.NewGate(owner),
		mailbox:   mb,
		engine:    engine,
		store:     st,
		listLimit: listLimit,
		wordLimit: wordLimit,
	}
	a.sender = &recordingSender{mailbox: mb, store: st}
	a.workflow = compose.New(engine, a.sender)
	return a
}

// Workflow exposes the state machine for tests and status display.
func (a *Assistant) Workflow() *compose.Workflow {
	return a.workflow
}

// HandleEvent routes one inbound chat event and returns the posts to
// apply to the conversation, in order.
func (a *Assistant) HandleEvent(ctx context.Context, ev chat.Event) []chat.Post {
	if !a.gate.Allow(ev) {
		return []chat.Post{a.gate.DeniedReply()}
	}

	switch ev.Kind {
	case chat.EventCommand:
		return a.handleCommand(ev)
	case chat.EventButton:
		return a.handleButton(ctx, ev)
	case chat.EventText:
		return a.handleText(ctx, ev)
	default:
		return nil
	}
}

func (a *Assistant) handleCommand(ev chat.Event) []chat.Post {
	switch ev.Command {
	case "start":
		return []chat.Post{chat.Send(
			"Hello! I watch your inbox and help you read and answer email.\n"+
				"Pick an action, or just tell me what you need.",
			menuOptions()...,
		)}
	case "menu":
		return []chat.Post{chat.Send("What would you like to do?", menuOptions()...)}
	default:
		return []chat.Post{chat.Send(
			fmt.Sprintf("Unknown command %q. Try /menu.", ev.Command),
		)}
	}
}

func menuOptions() []chat.Option {
	return []chat.Option{
		{Token: tokenMenuInbox, Label: "Inbox overview"},
		{Token: tokenMenuCompose, Label: "Compose email"},
	}
}

func (a *Assistant) handleButton(ctx context.Context, ev chat.Event) []chat.Post {
	token := ev.Token
	switch {
	case token == tokenMenuInbox:
		return a.inboxOverview(ctx)

	case token == tokenMenuCompose:
		return a.startCompose(ctx)

	case strings.HasPrefix(token, prefixRead):
		return a.readMessage(ctx, strings.TrimPrefix(token, prefixRead), false)

	case strings.HasPrefix(token, prefixReadFull):
		return a.readMessage(ctx, strings.TrimPrefix(token, prefixReadFull), true)

	case strings.HasPrefix(token, prefixReply):
		return a.startReply(ctx, strings.TrimPrefix(token, prefixReply))

	case strings.HasPrefix(token, prefixDismiss):
		return a.dismiss(ctx, strings.TrimPrefix(token, prefixDismiss), ev.SourceMessageID)

	case token == compose.TokenSendNow:
		return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventSend})

	case token == compose.TokenEditDraft:
		return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventEditManually})

	case token == compose.TokenRegenerate:
		return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventRegenerate})

	case token == compose.TokenCancel:
		return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventCancel})

	default:
		log.Printf("assistant: unknown button token %q", token)
		return nil
	}
}

// handleText gives an active workflow first claim on free text; otherwise
// the AI intent detector picks the feature, falling back to a hint when
// detection fails or finds nothing actionable.
func (a *Assistant) handleText(ctx context.Context, ev chat.Event) []chat.Post {
	if a.workflow.Active() {
		return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventText, Text: ev.Text})
	}

	if a.engine == nil {
		return []chat.Post{chat.Send("Pick an action:", menuOptions()...)}
	}

	intent, err := a.engine.DetectIntent(ctx, ev.Text)
	if err != nil {
		log.Printf("assistant: intent detection failed: %v", err)
		return []chat.Post{chat.Send(
			"I could not work out what you need. Pick an action:",
			menuOptions()...,
		)}
	}

	switch intent {
	case ai.IntentRead:
		return a.inboxOverview(ctx)
	case ai.IntentDraft:
		return a.startCompose(ctx)
	default:
		return []chat.Post{chat.Send(
			"I can show your inbox or help write an email.",
			menuOptions()...,
		)}
	}
}

// inboxOverview lists the most recent messages with a read action each.
func (a *Assistant) inboxOverview(ctx context.Context) []chat.Post {
	records, err := a.mailbox.ListRecent(ctx, a.listLimit)
	if err != nil {
		if mailbox.IsAuthError(err) {
			return []chat.Post{chat.Send(
				"I could not sign in to your mailbox. Please check your credentials.",
			)}
		}
		log.Printf("assistant: inbox overview failed: %v", err)
		return []chat.Post{chat.Send(
			"I could not reach your mailbox just now. Please try again.",
		)}
	}
	if len(records) == 0 {
		return []chat.Post{chat.Send("Your inbox has no recent messages.")}
	}

	var b strings.Builder
	b.WriteString("Recent messages:\n")
	options := make([]chat.Option, 0, len(records))
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, rec.SenderDisplay, rec.Subject)
		options = append(options, chat.Option{
			Token: prefixRead + rec.ID,
			Label: fmt.Sprintf("Read %d", i+1),
		})
	}
	return []chat.Post{chat.Send(b.String(), options...)}
}

// readMessage shows one message. Long bodies are summarized unless full
// is set; a failed summary falls back to the full text rather than an
// error disguised as content.
func (a *Assistant) readMessage(ctx context.Context, id string, full bool) []chat.Post {
	rec, err := a.mailbox.GetMessage(ctx, id)
	if err != nil {
		log.Printf("assistant: fetching message %s: %v", id, err)
		return []chat.Post{chat.Send(
			"I could not fetch that message. Please try again.",
		)}
	}
	if rec == nil {
		return []chat.Post{chat.Send("That message no longer exists in your mailbox.")}
	}

	body := rec.Body
	summarized := false
	if !full && a.engine != nil && model.WordCount(body) > a.wordLimit {
		summary, err := a.engine.Summarize(ctx, body)
		if err != nil {
			log.Printf("assistant: summarizing message %s: %v", id, err)
		} else {
			body = summary
			summarized = true
		}
	}

	heading := "Message"
	if summarized {
		heading = "Summary"
	}
	text := fmt.Sprintf("%s from %s\nSubject: %s\n\n%s",
		heading, rec.SenderDisplay, rec.Subject, body)

	options := []chat.Option{
		{Token: prefixReply + rec.ID, Label: "Draft reply"},
	}
	if summarized {
		options = append(options, chat.Option{
			Token: prefixReadFull + rec.ID, Label: "Read full",
		})
	}
	return []chat.Post{chat.Send(text, options...)}
}

// startCompose enters the fresh-compose workflow.
func (a *Assistant) startCompose(ctx context.Context) []chat.Post {
	a.sender.replyToID = ""
	return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventStartCompose})
}

// startReply fetches the target message and enters the reply workflow.
func (a *Assistant) startReply(ctx context.Context, id string) []chat.Post {
	rec, err := a.mailbox.GetMessage(ctx, id)
	if err != nil {
		log.Printf("assistant: fetching reply target %s: %v", id, err)
		return []chat.Post{chat.Send(
			"I could not fetch the message to reply to. Please try again.",
		)}
	}
	if rec == nil {
		return []chat.Post{chat.Send("That message no longer exists, so there is nothing to reply to.")}
	}

	a.sender.replyToID = rec.ID
	return a.workflow.Handle(ctx, compose.Event{Kind: compose.EventStartReply, Message: rec})
}

// dismiss marks a notification read and removes its chat message.
func (a *Assistant) dismiss(ctx context.Context, notificationID, postID string) []chat.Post {
	if a.store != nil {
		if err := a.store.MarkNotificationRead(ctx, notificationID); err != nil {
			log.Printf("assistant: marking notification %s read: %v", notificationID, err)
		}
	}
	if postID == "" {
		return nil
	}
	return []chat.Post{chat.Delete(postID)}
}

// HandleNotification persists a watcher notification and renders it with
// its follow-up actions.
func (a *Assistant) HandleNotification(ctx context.Context, n *model.Notification) []chat.Post {
	if n == nil {
		return nil
	}

	if a.store != nil {
		if err := a.store.CreateNotification(ctx, *n); err != nil {
			log.Printf("assistant: persisting notification %s: %v", n.ID, err)
		}
	}

	switch n.Kind {
	case model.NotificationAuthWarning:
		return []chat.Post{chat.Send(
			"⚠ I can no longer sign in to your mailbox. " +
				"Please re-enter your mail credentials.",
		)}

	case model.NotificationSummary:
		text := fmt.Sprintf("📧 New email from %s\nSubject: %s\n\nSummary: %s",
			n.Sender, n.Subject, n.Body)
		return []chat.Post{chat.Send(text,
			chat.Option{Token: prefixReadFull + n.MessageID, Label: "Read full"},
			chat.Option{Token: prefixReply + n.MessageID, Label: "Draft reply"},
			chat.Option{Token: prefixDismiss + n.ID, Label: "Dismiss"},
		)}

	default:
		text := fmt.Sprintf("📧 New email from %s\nSubject: %s\n\n%s",
			n.Sender, n.Subject, n.Body)
		return []chat.Post{chat.Send(text,
			chat.Option{Token: prefixReply + n.MessageID, Label: "Draft reply"},
			chat.Option{Token: prefixDismiss + n.ID, Label: "Dismiss"},
		)}
	}
}

// recordingSender submits through the mailbox and appends successful sends
// to the outgoing log. replyToID is set by the assistant before a reply
// workflow starts and cleared afterwards; a fresh compose leaves it empty.
type recordingSender struct {
	mailbox   mailbox.Mailbox
	store     store.Store
	replyToID string
}

func (r *recordingSender) Send(ctx context.Context, to, subject, body string) (model.SendResult, error) {
	result, err := r.mailbox.Send(ctx, to, subject, body)
	if err != nil {
		return result, err
	}

	if r.store != nil {
		out := model.OutgoingEmail{
			ID:        uuid.NewString(),
			Recipient: to,
			Subject:   subject,
			Body:      body,
			ReplyToID: r.replyToID,
			SentAt:    time.Now(),
		}
		if err := r.store.RecordOutgoing(ctx, out); err != nil {
			log.Printf("assistant: recording outgoing email: %v", err)
		}
	}
	r.replyToID = ""
	return result, nil
}
