package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/nhle/mail-assistant/internal/model"
)

// Send submits a plain-text message via the configured SMTP server.
func (c *Client) Send(
	ctx context.Context, to, subject, body string,
) (model.SendResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return model.SendResult{Detail: "recipient missing"},
			fmt.Errorf("send: recipient missing")
	}

	raw := buildOutgoingMessage(c.username, to, subject, body, time.Now())

	client, err := c.connectSMTP()
	if err != nil {
		return model.SendResult{Detail: err.Error()}, err
	}
	defer client.Close()

	if err := client.Mail(c.username, nil); err != nil {
		return model.SendResult{Detail: err.Error()},
			fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to, nil); err != nil {
		return model.SendResult{Detail: err.Error()},
			fmt.Errorf("SMTP RCPT TO %q: %w", to, err)
	}

	writer, err := client.Data()
	if err != nil {
		return model.SendResult{Detail: err.Error()},
			fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write([]byte(raw)); err != nil {
		writer.Close()
		return model.SendResult{Detail: err.Error()},
			fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return model.SendResult{Detail: err.Error()},
			fmt.Errorf("closing SMTP data: %w", err)
	}

	return model.SendResult{OK: true, Detail: "sent to " + to}, nil
}

// connectSMTP dials the submission server and authenticates. Implicit TLS
// when the mailbox is configured for TLS, STARTTLS otherwise.
func (c *Client) connectSMTP() (*smtp.Client, error) {
	addr := c.smtpHost + ":" + c.smtpPort
	tlsConfig := &tls.Config{ServerName: c.smtpHost}

	var client *smtp.Client
	if c.tls {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("SMTP TLS dial to %s: %w", addr, err)
		}
		client = smtp.NewClient(conn)
	} else {
		var err error
		client, err = smtp.DialStartTLS(addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("SMTP STARTTLS dial to %s: %w", addr, err)
		}
	}

	auth := sasl.NewPlainClient("", c.username, c.password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP auth: %w", err)
	}

	return client, nil
}

// buildOutgoingMessage assembles an RFC 5322 plain-text message.
func buildOutgoingMessage(
	from, to, subject, body string, now time.Time,
) string {
	var msg strings.Builder

	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		domain = from[i+1:]
	}

	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	msg.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("Message-ID: <" + uuid.NewString() + "@" + domain + ">\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	// Normalize bare newlines for SMTP.
	msg.WriteString(strings.ReplaceAll(
		strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n",
	))
	msg.WriteString("\r\n")

	return msg.String()
}
