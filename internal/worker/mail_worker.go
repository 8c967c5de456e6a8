package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"

	"fintrack/internal/amqp"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailWorker renders and delivers queued transactional mail. It holds no
// database access; everything needed to render arrives in the message.
type MailWorker struct {
	sender     Sender
	appBaseURL string
}

func NewMailWorker(sender Sender, appBaseURL string) *MailWorker {
	return &MailWorker{
		sender:     sender,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// HandleMail processes a single queued message. Returning an error makes
// the consumer requeue the delivery.
func (w *MailWorker) HandleMail(ctx context.Context, msg *amqp.MailMessage) error {
	slog.InfoContext(ctx, "Processing mail message", "kind", msg.Kind)

	subject, body, err := w.render(msg)
	if err != nil {
		return err
	}

	if err := w.sender.Send(ctx, msg.To, subject, body); err != nil {
		return fmt.Errorf("send %s mail: %w", msg.Kind, err)
	}

	slog.InfoContext(ctx, "Mail delivered", "kind", msg.Kind)
	return nil
}

func (w *MailWorker) render(msg *amqp.MailMessage) (subject, body string, err error) {
	name := msg.DisplayName
	if name == "" {
		name = "there"
	}

	switch msg.Kind {
	case amqp.MailVerifyEmail:
		link := w.appBaseURL + "/verify-email?token=" + url.QueryEscape(msg.Token)
		subject = "Confirm your Fintrack email"
		body = fmt.Sprintf(
			"Hi %s,\n\nConfirm your email address to finish setting up your account:\n\n%s\n\nThe link expires in 24 hours. If you did not create this account, ignore this message.\n",
			name, link)
	case amqp.MailResetPassword:
		link := w.appBaseURL + "/reset-password?token=" + url.QueryEscape(msg.Token)
		subject = "Reset your Fintrack password"
		body = fmt.Sprintf(
			"Hi %s,\n\nA password reset was requested for your account. Use this link to choose a new password:\n\n%s\n\nThe link expires in 1 hour. If you did not request this, ignore this message.\n",
			name, link)
	default:
		return "", "", fmt.Errorf("unknown mail kind: %s", msg.Kind)
	}
	return subject, body, nil
}

// SMTPSender delivers mail over plain SMTP with optional auth.
type SMTPSender struct {
	addr     string // host:port
	from     string
	username string
	password string
}

func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	return &SMTPSender{
		addr:     addr,
		from:     from,
		username: username,
		password: password,
	}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	var auth smtp.Auth
	if s.username != "" {
		host := s.addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.username, s.password, host)
	}

	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
