package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
)

// Mailer sends a single message. SMTPMailer is the production implementation;
// tests plug in a fake.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer talks plain SMTP. There is no connection pooling; notification
// volume per instance does not justify it.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
	Host     string // for AUTH; host part of Addr
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", m.From)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(body)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	if err := smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(sb.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// EmailAdapter delivers over email. The recipient address comes from the
// user's channel preferences; a missing address fails immediately without
// burning retry attempts.
type EmailAdapter struct {
	mailer Mailer
}

func NewEmailAdapter(mailer Mailer) *EmailAdapter {
	return &EmailAdapter{mailer: mailer}
}

func (a *EmailAdapter) Channel() core.Channel { return core.ChannelEmail }

func (a *EmailAdapter) Deliver(ctx context.Context, n *core.Notification, prefs *core.Preferences) error {
	to := prefs.ChannelAddress(core.ChannelEmail)
	if to == "" {
		return Permanent(apperrors.ErrNoRecipientAddress)
	}
	if err := a.mailer.Send(ctx, to, n.Title, n.Message); err != nil {
		return err
	}
	return nil
}
