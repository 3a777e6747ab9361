package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nhle/mail-assistant/internal/ai"
	"github.com/nhle/mail-assistant/internal/chat"
	"github.com/nhle/mail-assistant/internal/compose"
	"github.com/nhle/mail-assistant/internal/mailbox"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/tests/testutil"
)

const owner = "owner-1"

type fakeMailbox struct {
	recent    []model.MessageRecord
	recentErr error
	messages  map[string]*model.MessageRecord
	fetchErr  error

	sentTo      []string
	sendErr     error
	lastSubject string
	lastBody    string
}

func (f *fakeMailbox) ListLatestID(context.Context, mailbox.ListOptions) (string, error) {
	return "", mailbox.ErrNoMessages
}

func (f *fakeMailbox) ListRecent(_ context.Context, limit int) ([]model.MessageRecord, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*model.MessageRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages[id], nil
}

func (f *fakeMailbox) Send(_ context.Context, to, subject, body string) (model.SendResult, error) {
	if f.sendErr != nil {
		return model.SendResult{}, f.sendErr
	}
	f.sentTo = append(f.sentTo, to)
	f.lastSubject = subject
	f.lastBody = body
	return model.SendResult{OK: true, Detail: "sent to " + to}, nil
}

type fakeEngine struct {
	summary    string
	summaryErr error
	draft      string
	draftErr   error
	intent     ai.Intent
	intentErr  error

	summarizeCalls int
}

func (f *fakeEngine) Summarize(context.Context, string) (string, error) {
	f.summarizeCalls++
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return f.summary, nil
}

func (f *fakeEngine) DraftReply(context.Context, string, string, string) (string, error) {
	if f.draftErr != nil {
		return "", f.draftErr
	}
	return f.draft, nil
}

func (f *fakeEngine) DetectIntent(context.Context, string) (ai.Intent, error) {
	if f.intentErr != nil {
		return "", f.intentErr
	}
	return f.intent, nil
}

func longBody(words int) string {
	return strings.Repeat("word ", words-1) + "word"
}

func newTestAssistant(t *testing.T, mb *fakeMailbox, engine *fakeEngine) *Assistant {
	t.Helper()
	return New(owner, mb, engine, testutil.NewTestStore(t), 5, 50)
}

func ownerEvent(kind chat.EventKind) chat.Event {
	return chat.Event{Kind: kind, UserID: owner}
}

func buttonEvent(token string) chat.Event {
	ev := ownerEvent(chat.EventButton)
	ev.Token = token
	return ev
}

func textEvent(text string) chat.Event {
	ev := ownerEvent(chat.EventText)
	ev.Text = text
	return ev
}

func firstText(t *testing.T, posts []chat.Post) string {
	t.Helper()
	if len(posts) == 0 {
		t.Fatal("expected at least one post")
	}
	return posts[0].Text
}

func TestNonOwnerIsDeniedEverywhere(t *testing.T) {
	mb := &fakeMailbox{recent: []model.MessageRecord{{ID: "1", Subject: "x"}}}
	a := newTestAssistant(t, mb, &fakeEngine{})

	for _, ev := range []chat.Event{
		{Kind: chat.EventCommand, UserID: "stranger", Command: "start"},
		{Kind: chat.EventButton, UserID: "stranger", Token: tokenMenuInbox},
		{Kind: chat.EventText, UserID: "stranger", Text: "show my inbox"},
	} {
		posts := a.HandleEvent(context.Background(), ev)
		if len(posts) != 1 {
			t.Fatalf("denied reply count = %d", len(posts))
		}
		if !strings.Contains(posts[0].Text, "owner only") {
			t.Errorf("denial text = %q", posts[0].Text)
		}
	}
	if a.Workflow().State() != compose.StateIdle {
		t.Error("stranger input mutated workflow state")
	}
}

func TestStartCommandShowsMenu(t *testing.T) {
	a := newTestAssistant(t, &fakeMailbox{}, &fakeEngine{})

	ev := ownerEvent(chat.EventCommand)
	ev.Command = "start"
	posts := a.HandleEvent(context.Background(), ev)

	if len(posts) != 1 || len(posts[0].Options) != 2 {
		t.Fatalf("menu post missing options: %+v", posts)
	}
	if posts[0].Options[0].Token != tokenMenuInbox {
		t.Errorf("first option = %q", posts[0].Options[0].Token)
	}
}

func TestInboxOverviewListsRecentWithReadButtons(t *testing.T) {
	mb := &fakeMailbox{recent: []model.MessageRecord{
		{ID: "9", SenderDisplay: "Bob", Subject: "Lunch"},
		{ID: "8", SenderDisplay: "Carol", Subject: "Budget"},
	}}
	a := newTestAssistant(t, mb, &fakeEngine{})

	posts := a.HandleEvent(context.Background(), buttonEvent(tokenMenuInbox))

	text := firstText(t, posts)
	if !strings.Contains(text, "Bob - Lunch") || !strings.Contains(text, "Carol - Budget") {
		t.Errorf("overview text = %q", text)
	}
	if len(posts[0].Options) != 2 {
		t.Fatalf("option count = %d", len(posts[0].Options))
	}
	if posts[0].Options[0].Token != "read:9" {
		t.Errorf("first read token = %q", posts[0].Options[0].Token)
	}
}

func TestInboxOverviewAuthFailure(t *testing.T) {
	mb := &fakeMailbox{recentErr: &mailbox.AuthError{Account: "me@example.com", Message: "login failed"}}
	a := newTestAssistant(t, mb, &fakeEngine{})

	text := firstText(t, a.HandleEvent(context.Background(), buttonEvent(tokenMenuInbox)))
	if !strings.Contains(text, "credentials") {
		t.Errorf("auth failure text = %q", text)
	}
}

func TestReadShortMessageShowsFullText(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {ID: "9", SenderDisplay: "Bob", Subject: "Lunch", Body: "Noon works for me."},
	}}
	engine := &fakeEngine{summary: "should not be used"}
	a := newTestAssistant(t, mb, engine)

	posts := a.HandleEvent(context.Background(), buttonEvent("read:9"))

	text := firstText(t, posts)
	if !strings.Contains(text, "Noon works for me.") {
		t.Errorf("body missing: %q", text)
	}
	if engine.summarizeCalls != 0 {
		t.Error("short message must not be summarized")
	}
	// Only the reply action; no "read full" for an unsummarized body.
	if len(posts[0].Options) != 1 || posts[0].Options[0].Token != "reply:9" {
		t.Errorf("options = %+v", posts[0].Options)
	}
}

func TestReadLongMessageSummarizesWithReadFull(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {ID: "9", SenderDisplay: "Bob", Subject: "Plan", Body: longBody(120)},
	}}
	engine := &fakeEngine{summary: "Bob proposes a plan."}
	a := newTestAssistant(t, mb, engine)

	posts := a.HandleEvent(context.Background(), buttonEvent("read:9"))

	text := firstText(t, posts)
	if !strings.Contains(text, "Bob proposes a plan.") {
		t.Errorf("summary missing: %q", text)
	}
	var tokens []string
	for _, o := range posts[0].Options {
		tokens = append(tokens, o.Token)
	}
	if strings.Join(tokens, ",") != "reply:9,read_full:9" {
		t.Errorf("tokens = %v", tokens)
	}

	// Read full bypasses the summarizer.
	posts = a.HandleEvent(context.Background(), buttonEvent("read_full:9"))
	if !strings.Contains(firstText(t, posts), "word word") {
		t.Errorf("full body missing: %q", firstText(t, posts))
	}
	if engine.summarizeCalls != 1 {
		t.Errorf("summarize calls = %d, want 1", engine.summarizeCalls)
	}
}

func TestReadSummaryFailureFallsBackToFullBody(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {ID: "9", SenderDisplay: "Bob", Subject: "Plan", Body: longBody(120)},
	}}
	engine := &fakeEngine{summaryErr: errors.New("model overloaded")}
	a := newTestAssistant(t, mb, engine)

	text := firstText(t, a.HandleEvent(context.Background(), buttonEvent("read:9")))
	if !strings.Contains(text, "word word") {
		t.Errorf("fallback body missing: %q", text)
	}
	if strings.Contains(text, "overloaded") {
		t.Error("error text leaked into content")
	}
}

func TestReadMissingMessage(t *testing.T) {
	a := newTestAssistant(t, &fakeMailbox{messages: map[string]*model.MessageRecord{}}, &fakeEngine{})

	text := firstText(t, a.HandleEvent(context.Background(), buttonEvent("read:404")))
	if !strings.Contains(text, "no longer exists") {
		t.Errorf("text = %q", text)
	}
}

func TestReplyButtonRunsWorkflowEndToEnd(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {
			ID:            "9",
			SenderDisplay: "Bob",
			SenderAddress: "Bob <bob@example.com>",
			Subject:       "Lunch",
			Body:          "Free at noon?",
		},
	}}
	engine := &fakeEngine{draft: "Noon works, see you there."}
	a := newTestAssistant(t, mb, engine)
	ctx := context.Background()

	a.HandleEvent(ctx, buttonEvent("reply:9"))
	if a.Workflow().State() != compose.StateAwaitingInstruction {
		t.Fatalf("state = %v", a.Workflow().State())
	}

	posts := a.HandleEvent(ctx, textEvent("accept the invitation"))
	if a.Workflow().State() != compose.StateReviewingDraft {
		t.Fatalf("state = %v", a.Workflow().State())
	}
	if !strings.Contains(firstText(t, posts), "Noon works") {
		t.Errorf("preview missing draft: %q", firstText(t, posts))
	}

	a.HandleEvent(ctx, buttonEvent(compose.TokenSendNow))
	if a.Workflow().State() != compose.StateSent {
		t.Fatalf("state = %v", a.Workflow().State())
	}
	if len(mb.sentTo) != 1 || mb.sentTo[0] != "bob@example.com" {
		t.Errorf("sent to %v", mb.sentTo)
	}
	if mb.lastSubject != "Re: Lunch" {
		t.Errorf("subject = %q", mb.lastSubject)
	}
}

func TestSendIsRecordedInOutgoingLog(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {ID: "9", SenderAddress: "bob@example.com", Subject: "Lunch", Body: "Free at noon?"},
	}}
	st := testutil.NewTestStore(t)
	a := New(owner, mb, &fakeEngine{draft: "OK."}, st, 5, 50)
	ctx := context.Background()

	a.HandleEvent(ctx, buttonEvent("reply:9"))
	a.HandleEvent(ctx, textEvent("accept"))
	a.HandleEvent(ctx, buttonEvent(compose.TokenSendNow))

	logEntries, err := st.GetRecentOutgoing(ctx, 10)
	if err != nil {
		t.Fatalf("reading outgoing log: %v", err)
	}
	if len(logEntries) != 1 {
		t.Fatalf("log length = %d, want 1", len(logEntries))
	}
	if logEntries[0].Recipient != "bob@example.com" || logEntries[0].ReplyToID != "9" {
		t.Errorf("log entry = %+v", logEntries[0])
	}
}

func TestFreeTextRoutesByIntent(t *testing.T) {
	mb := &fakeMailbox{recent: []model.MessageRecord{{ID: "9", SenderDisplay: "Bob", Subject: "Lunch"}}}

	t.Run("read intent shows inbox", func(t *testing.T) {
		a := newTestAssistant(t, mb, &fakeEngine{intent: ai.IntentRead})
		text := firstText(t, a.HandleEvent(context.Background(), textEvent("any new email?")))
		if !strings.Contains(text, "Recent messages") {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("draft intent starts compose", func(t *testing.T) {
		a := newTestAssistant(t, mb, &fakeEngine{intent: ai.IntentDraft})
		a.HandleEvent(context.Background(), textEvent("write an email to dana"))
		if a.Workflow().State() != compose.StateAwaitingRecipient {
			t.Errorf("state = %v", a.Workflow().State())
		}
	})

	t.Run("other intent shows hint", func(t *testing.T) {
		a := newTestAssistant(t, mb, &fakeEngine{intent: ai.IntentOther})
		text := firstText(t, a.HandleEvent(context.Background(), textEvent("how is the weather?")))
		if !strings.Contains(text, "inbox") {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("detection failure shows menu", func(t *testing.T) {
		a := newTestAssistant(t, mb, &fakeEngine{intentErr: errors.New("timeout")})
		posts := a.HandleEvent(context.Background(), textEvent("hmm"))
		if len(posts[0].Options) != 2 {
			t.Errorf("options = %+v", posts[0].Options)
		}
	})
}

func TestActiveWorkflowClaimsFreeText(t *testing.T) {
	mb := &fakeMailbox{messages: map[string]*model.MessageRecord{
		"9": {ID: "9", SenderAddress: "bob@example.com", Subject: "Lunch", Body: "Noon?"},
	}}
	// Intent detector would route to inbox; the active workflow must win.
	engine := &fakeEngine{intent: ai.IntentRead, draft: "Sure."}
	a := newTestAssistant(t, mb, engine)
	ctx := context.Background()

	a.HandleEvent(ctx, buttonEvent("reply:9"))
	a.HandleEvent(ctx, textEvent("accept"))

	if a.Workflow().State() != compose.StateReviewingDraft {
		t.Fatalf("free text did not reach the workflow, state = %v", a.Workflow().State())
	}
}

func TestNotificationRenderingByKind(t *testing.T) {
	a := newTestAssistant(t, &fakeMailbox{}, &fakeEngine{})
	ctx := context.Background()

	summary := &model.Notification{
		ID:        "n1",
		Kind:      model.NotificationSummary,
		MessageID: "9",
		Sender:    "Bob",
		Subject:   "Plan",
		Body:      "Bob proposes a plan.",
		CreatedAt: time.Now(),
	}
	posts := a.HandleNotification(ctx, summary)
	if !strings.Contains(firstText(t, posts), "Summary: Bob proposes a plan.") {
		t.Errorf("summary text = %q", firstText(t, posts))
	}
	if len(posts[0].Options) != 3 {
		t.Errorf("summary options = %+v", posts[0].Options)
	}

	full := &model.Notification{
		ID:        "n2",
		Kind:      model.NotificationFullText,
		MessageID: "9",
		Sender:    "Bob",
		Subject:   "Lunch",
		Body:      "Noon?",
		CreatedAt: time.Now(),
	}
	posts = a.HandleNotification(ctx, full)
	if strings.Contains(firstText(t, posts), "Summary:") {
		t.Errorf("full-text notification labelled as summary: %q", firstText(t, posts))
	}
	if len(posts[0].Options) != 2 {
		t.Errorf("full-text options = %+v", posts[0].Options)
	}

	auth := &model.Notification{ID: "n3", Kind: model.NotificationAuthWarning, CreatedAt: time.Now()}
	posts = a.HandleNotification(ctx, auth)
	if len(posts[0].Options) != 0 {
		t.Errorf("auth warning should carry no actions: %+v", posts[0].Options)
	}
}

func TestDismissMarksReadAndDeletesPost(t *testing.T) {
	st := testutil.NewTestStore(t)
	a := New(owner, &fakeMailbox{}, &fakeEngine{}, st, 5, 50)
	ctx := context.Background()

	n := &model.Notification{
		ID:        "n1",
		Kind:      model.NotificationFullText,
		MessageID: "9",
		Sender:    "Bob",
		Subject:   "Lunch",
		Body:      "Noon?",
		CreatedAt: time.Now(),
	}
	a.HandleNotification(ctx, n)

	ev := buttonEvent("dismiss:n1")
	ev.SourceMessageID = "post-42"
	posts := a.HandleEvent(ctx, ev)

	if len(posts) != 1 || posts[0].Kind != chat.PostDelete || posts[0].TargetID != "post-42" {
		t.Errorf("posts = %+v", posts)
	}
	unread, err := st.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("notification still unread after dismiss")
	}
}
