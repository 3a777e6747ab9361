package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-assistant/internal/mailbox"
	"github.com/nhle/mail-assistant/internal/model"
)

// snippetLimit bounds the fallback preview built when a body cannot be
// decoded as plain text.
const snippetLimit = 200

// recentWindow is how far back ListRecent searches.
const recentWindow = 7 * 24 * time.Hour

// Client implements mailbox.Mailbox over IMAP for reading and SMTP for
// sending. Each operation dials a fresh connection; the account is
// polled once a minute, so connection reuse buys little.
type Client struct {
	imapHost string
	imapPort string
	smtpHost string
	smtpPort string
	username string
	password string
	tls      bool
}

// New creates a mailbox client from connection settings. The password is
// shared between IMAP and SMTP, which is how single-account providers
// behave.
func New(cfg model.MailboxConfig, password string) *Client {
	return &Client{
		imapHost: cfg.IMAPHost,
		imapPort: cfg.IMAPPort,
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
	}
}

// connect dials the IMAP server, authenticates, and selects INBOX.
// The caller is responsible for Logout on the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.imapHost + ":" + c.imapPort

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailbox.AuthError{
			Account: c.username,
			Message: fmt.Sprintf("authentication failed: %v", err),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	return client, nil
}

// ListLatestID returns the UID of the most recent INBOX message as a
// decimal string.
func (c *Client) ListLatestID(
	ctx context.Context, opts mailbox.ListOptions,
) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{}
	if opts.UnreadOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return "", fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return "", mailbox.ErrNoMessages
	}

	// UIDs ascend with arrival order within a mailbox.
	head := uids[len(uids)-1]
	return strconv.FormatUint(uint64(head), 10), nil
}

// ListRecent returns envelope records for recent INBOX messages, newest
// first. Bodies are left empty.
func (c *Client) ListRecent(
	ctx context.Context, limit int,
) ([]model.MessageRecord, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		Since: time.Now().Add(-recentWindow),
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	uidSet := imap.UIDSetNum(uids...)
	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var records []model.MessageRecord
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		records = append(records, recordFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return records, fmt.Errorf("fetching envelopes: %w", err)
	}

	// Search results come back oldest first; the caller wants the
	// opposite.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// GetMessage fetches the full record for the given UID string, decoding
// the plain-text body. Returns nil when the UID no longer exists.
func (c *Client) GetMessage(
	ctx context.Context, id string,
) (*model.MessageRecord, error) {
	uid64, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", id, err)
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(imap.UID(uid64))
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	record := recordFromBuffer(buf)
	if raw := buf.FindBodySection(bodySection); raw != nil {
		record.Body = extractTextBody(raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return &record, fmt.Errorf("closing fetch: %w", err)
	}

	return &record, nil
}

// recordFromBuffer builds a MessageRecord from envelope data.
func recordFromBuffer(buf *imapclient.FetchMessageBuffer) model.MessageRecord {
	record := model.MessageRecord{
		ID: strconv.FormatUint(uint64(buf.UID), 10),
	}

	if buf.Envelope != nil {
		record.Subject = buf.Envelope.Subject
		record.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			record.SenderAddress = from.Addr()
			if from.Name != "" {
				record.SenderDisplay = from.Name
			} else {
				record.SenderDisplay = from.Addr()
			}
		}
	}

	return record
}

// extractTextBody parses a raw RFC 2822 message and returns its text/plain
// part. When no plain part exists it falls back to a short preview built
// from whatever content is present.
func extractTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return snippet(string(raw))
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if htmlBody != "" {
		return snippet(htmlBody)
	}
	return snippet(string(raw))
}

// snippet trims s to a short single-line preview.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > snippetLimit {
		s = s[:snippetLimit] + "…"
	}
	return s
}
