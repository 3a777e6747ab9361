package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/model"
)

type fakeDrafter struct {
	draft string
	err   error

	calls           int
	lastSourceBody  string
	lastInstruction string
	lastPriorDraft  string
}

func (f *fakeDrafter) DraftReply(_ context.Context, sourceBody, instruction, priorDraft string) (string, error) {
	f.calls++
	f.lastSourceBody = sourceBody
	f.lastInstruction = instruction
	f.lastPriorDraft = priorDraft
	if f.err != nil {
		return "", f.err
	}
	return f.draft, nil
}

type fakeSender struct {
	err   error
	calls int

	lastTo      string
	lastSubject string
	lastBody    string
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) (model.SendResult, error) {
	f.calls++
	f.lastTo = to
	f.lastSubject = subject
	f.lastBody = body
	if f.err != nil {
		return model.SendResult{}, f.err
	}
	return model.SendResult{OK: true, Detail: "sent to " + to}, nil
}

func replyTarget() *model.MessageRecord {
	return &model.MessageRecord{
		ID:            "101",
		SenderDisplay: "Bob Smith",
		SenderAddress: "Bob Smith <bob@example.com>",
		Subject:       "Lunch tomorrow?",
		Body:          "Hey, are you free for lunch tomorrow around noon?",
	}
}

func textEvent(s string) Event {
	return Event{Kind: EventText, Text: s}
}

// postText joins the text of all returned posts for containment checks.
func postText(t *testing.T, posts []chat.Post) string {
	t.Helper()
	if len(posts) == 0 {
		t.Fatal("expected at least one post")
	}
	var parts []string
	for _, p := range posts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

func TestReplySeedsContextFromMessage(t *testing.T) {
	drafter := &fakeDrafter{draft: "Sure, noon works."}
	w := New(drafter, &fakeSender{})

	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})

	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}
	ctxt := w.Context()
	if ctxt.Recipient != "bob@example.com" {
		t.Errorf("recipient = %q", ctxt.Recipient)
	}
	if ctxt.SubjectLine != "Re: Lunch tomorrow?" {
		t.Errorf("subject = %q", ctxt.SubjectLine)
	}
	if ctxt.SourceBody == "" {
		t.Error("source body not captured")
	}
	if ctxt.CurrentDraft != "" {
		t.Errorf("draft should be empty before generation, got %q", ctxt.CurrentDraft)
	}
}

func TestInstructionGeneratesDraftForReview(t *testing.T) {
	drafter := &fakeDrafter{draft: "Sounds great, see you at noon."}
	w := New(drafter, &fakeSender{})
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})

	posts := w.Handle(context.Background(), textEvent("accept warmly"))

	if w.State() != StateReviewingDraft {
		t.Fatalf("state = %v, want reviewing_draft", w.State())
	}
	if drafter.lastInstruction != "accept warmly" {
		t.Errorf("instruction = %q", drafter.lastInstruction)
	}
	if drafter.lastSourceBody == "" {
		t.Error("source body not passed to drafter")
	}
	if drafter.lastPriorDraft != "" {
		t.Errorf("first generation should carry no prior draft, got %q", drafter.lastPriorDraft)
	}
	out := postText(t, posts)
	if !strings.Contains(out, "Sounds great, see you at noon.") {
		t.Errorf("preview missing draft text: %q", out)
	}
	if len(posts[len(posts)-1].Options) != 4 {
		t.Errorf("review post should carry 4 actions, got %d", len(posts[len(posts)-1].Options))
	}
}

func TestGenerationFailureStaysInInstructionState(t *testing.T) {
	drafter := &fakeDrafter{err: errors.New("model overloaded")}
	w := New(drafter, &fakeSender{})
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})

	posts := w.Handle(context.Background(), textEvent("accept"))

	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}
	if w.Context().CurrentDraft != "" {
		t.Errorf("failed generation must not populate the draft, got %q", w.Context().CurrentDraft)
	}
	if !strings.Contains(postText(t, posts), "failed") {
		t.Error("user not told about the failure")
	}

	// A corrected instruction recovers without restarting.
	drafter.err = nil
	drafter.draft = "OK."
	w.Handle(context.Background(), textEvent("accept briefly"))
	if w.State() != StateReviewingDraft {
		t.Fatalf("state after retry = %v, want reviewing_draft", w.State())
	}
}

func TestSendSubmitsReviewedDraft(t *testing.T) {
	sender := &fakeSender{}
	w := New(&fakeDrafter{draft: "See you then."}, sender)
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))

	posts := w.Handle(context.Background(), Event{Kind: EventSend})

	if w.State() != StateSent {
		t.Fatalf("state = %v, want sent", w.State())
	}
	if sender.lastTo != "bob@example.com" || sender.lastSubject != "Re: Lunch tomorrow?" {
		t.Errorf("sent to %q subject %q", sender.lastTo, sender.lastSubject)
	}
	if sender.lastBody != "See you then." {
		t.Errorf("sent body = %q", sender.lastBody)
	}
	if w.Context() != nil {
		t.Error("context should be discarded after send")
	}
	if !strings.Contains(postText(t, posts), "sent to bob@example.com") {
		t.Errorf("confirmation missing: %q", postText(t, posts))
	}
}

func TestSendFailureKeepsReviewState(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp unreachable")}
	w := New(&fakeDrafter{draft: "See you."}, sender)
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))

	w.Handle(context.Background(), Event{Kind: EventSend})

	if w.State() != StateReviewingDraft {
		t.Fatalf("state = %v, want reviewing_draft", w.State())
	}
	if w.Context() == nil || w.Context().CurrentDraft != "See you." {
		t.Error("draft must survive a send failure")
	}

	sender.err = nil
	w.Handle(context.Background(), Event{Kind: EventSend})
	if w.State() != StateSent {
		t.Fatalf("retry should succeed, state = %v", w.State())
	}
	if sender.calls != 2 {
		t.Errorf("sender calls = %d, want 2", sender.calls)
	}
}

func TestManualEditReplacesDraftVerbatim(t *testing.T) {
	drafter := &fakeDrafter{draft: "Generated text."}
	sender := &fakeSender{}
	w := New(drafter, sender)
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))

	w.Handle(context.Background(), Event{Kind: EventEditManually})
	if w.State() != StateAwaitingManualEdit {
		t.Fatalf("state = %v, want awaiting_manual_edit", w.State())
	}

	w.Handle(context.Background(), textEvent("My own words, exactly."))
	if w.State() != StateReviewingDraft {
		t.Fatalf("state = %v, want reviewing_draft", w.State())
	}
	if w.Context().CurrentDraft != "My own words, exactly." {
		t.Errorf("draft = %q", w.Context().CurrentDraft)
	}
	if drafter.calls != 1 {
		t.Errorf("manual edit must not call the drafter, calls = %d", drafter.calls)
	}

	w.Handle(context.Background(), Event{Kind: EventSend})
	if sender.lastBody != "My own words, exactly." {
		t.Errorf("sent body = %q", sender.lastBody)
	}
}

func TestRegenerateCarriesPriorDraftAndSourceBody(t *testing.T) {
	drafter := &fakeDrafter{draft: "First attempt."}
	w := New(drafter, &fakeSender{})
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))

	w.Handle(context.Background(), Event{Kind: EventRegenerate})
	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}

	drafter.draft = "Second attempt."
	w.Handle(context.Background(), textEvent("make it shorter"))

	if drafter.lastPriorDraft != "First attempt." {
		t.Errorf("prior draft = %q", drafter.lastPriorDraft)
	}
	if drafter.lastSourceBody == "" {
		t.Error("source body lost across regenerate")
	}
	if w.Context().CurrentDraft != "Second attempt." {
		t.Errorf("draft = %q", w.Context().CurrentDraft)
	}
}

func TestCancelDiscardsContextFromAnyState(t *testing.T) {
	for _, tt := range []struct {
		name  string
		setup func(w *Workflow)
	}{
		{"awaiting instruction", func(w *Workflow) {
			w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
		}},
		{"reviewing draft", func(w *Workflow) {
			w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
			w.Handle(context.Background(), textEvent("accept"))
		}},
		{"awaiting manual edit", func(w *Workflow) {
			w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
			w.Handle(context.Background(), textEvent("accept"))
			w.Handle(context.Background(), Event{Kind: EventEditManually})
		}},
		{"awaiting recipient", func(w *Workflow) {
			w.Handle(context.Background(), Event{Kind: EventStartCompose})
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			w := New(&fakeDrafter{draft: "x"}, sender)
			tt.setup(w)

			w.Handle(context.Background(), Event{Kind: EventCancel})

			if w.State() != StateCancelled {
				t.Fatalf("state = %v, want cancelled", w.State())
			}
			if w.Context() != nil {
				t.Error("context should be discarded on cancel")
			}
			if sender.calls != 0 {
				t.Error("nothing may be sent on cancel")
			}
		})
	}
}

func TestTerminalStatesIgnoreFurtherInput(t *testing.T) {
	sender := &fakeSender{}
	w := New(&fakeDrafter{draft: "x"}, sender)
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))
	w.Handle(context.Background(), Event{Kind: EventSend})

	for _, ev := range []Event{
		textEvent("more text"),
		{Kind: EventSend},
		{Kind: EventRegenerate},
		{Kind: EventEditManually},
		{Kind: EventCancel},
	} {
		if posts := w.Handle(context.Background(), ev); posts != nil {
			t.Errorf("event %v after send produced posts", ev.Kind)
		}
	}
	if w.State() != StateSent {
		t.Fatalf("state drifted to %v", w.State())
	}
	if sender.calls != 1 {
		t.Errorf("sender calls = %d, want exactly 1", sender.calls)
	}
}

func TestNewStartReplacesActiveContext(t *testing.T) {
	w := New(&fakeDrafter{draft: "x"}, &fakeSender{})
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: replyTarget()})
	w.Handle(context.Background(), textEvent("accept"))

	second := &model.MessageRecord{
		ID:            "202",
		SenderAddress: "carol@example.com",
		Subject:       "Budget review",
		Body:          "Can you look at the attached numbers?",
	}
	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: second})

	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}
	ctxt := w.Context()
	if ctxt.Recipient != "carol@example.com" {
		t.Errorf("recipient = %q, old context leaked", ctxt.Recipient)
	}
	if ctxt.CurrentDraft != "" {
		t.Errorf("old draft leaked: %q", ctxt.CurrentDraft)
	}
	if ctxt.SubjectLine != "Re: Budget review" {
		t.Errorf("subject = %q", ctxt.SubjectLine)
	}
}

func TestComposeCollectsRecipientAndSubject(t *testing.T) {
	drafter := &fakeDrafter{draft: "Hello Dana."}
	sender := &fakeSender{}
	w := New(drafter, sender)

	w.Handle(context.Background(), Event{Kind: EventStartCompose})
	if w.State() != StateAwaitingRecipient {
		t.Fatalf("state = %v, want awaiting_recipient", w.State())
	}

	// An invalid address keeps the step.
	posts := w.Handle(context.Background(), textEvent("not-an-address"))
	if w.State() != StateAwaitingRecipient {
		t.Fatalf("invalid address advanced the state to %v", w.State())
	}
	if !strings.Contains(postText(t, posts), "does not look like") {
		t.Error("user not told the address is invalid")
	}

	w.Handle(context.Background(), textEvent("dana@example.com"))
	if w.State() != StateAwaitingSubject {
		t.Fatalf("state = %v, want awaiting_subject", w.State())
	}

	w.Handle(context.Background(), textEvent("Quarterly report"))
	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}

	w.Handle(context.Background(), textEvent("ask for the latest figures"))
	if drafter.lastSourceBody != "" {
		t.Errorf("fresh compose should have no source body, got %q", drafter.lastSourceBody)
	}

	w.Handle(context.Background(), Event{Kind: EventSend})
	if sender.lastTo != "dana@example.com" || sender.lastSubject != "Quarterly report" {
		t.Errorf("sent to %q subject %q", sender.lastTo, sender.lastSubject)
	}
}

func TestReplyWithoutAddressDetoursToRecipientStep(t *testing.T) {
	w := New(&fakeDrafter{draft: "x"}, &fakeSender{})
	msg := replyTarget()
	msg.SenderAddress = ""

	w.Handle(context.Background(), Event{Kind: EventStartReply, Message: msg})
	if w.State() != StateAwaitingRecipient {
		t.Fatalf("state = %v, want awaiting_recipient", w.State())
	}

	w.Handle(context.Background(), textEvent("bob@example.com"))
	// The reply path keeps its source body, so the subject step is skipped.
	if w.State() != StateAwaitingInstruction {
		t.Fatalf("state = %v, want awaiting_instruction", w.State())
	}
	if w.Context().SubjectLine != "Re: Lunch tomorrow?" {
		t.Errorf("subject = %q", w.Context().SubjectLine)
	}
}
