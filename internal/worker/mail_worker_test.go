package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fintrack/internal/amqp"
)

type captureSender struct {
	to, subject, body string
	err               error
}

func (c *captureSender) Send(_ context.Context, to, subject, body string) error {
	if c.err != nil {
		return c.err
	}
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestHandleMailVerification(t *testing.T) {
	sender := &captureSender{}
	w := NewMailWorker(sender, "https://fintrack.example/")

	msg := amqp.NewMailMessage(amqp.MailVerifyEmail, "a@example.com", "Ana", "tok 123")
	if err := w.HandleMail(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if sender.to != "a@example.com" {
		t.Fatalf("to = %q", sender.to)
	}
	if !strings.Contains(sender.subject, "Confirm") {
		t.Fatalf("subject = %q", sender.subject)
	}
	if !strings.Contains(sender.body, "https://fintrack.example/verify-email?token=tok+123") {
		t.Fatalf("body missing link:\n%s", sender.body)
	}
	if !strings.Contains(sender.body, "Hi Ana") {
		t.Fatalf("body missing greeting:\n%s", sender.body)
	}
}

func TestHandleMailReset(t *testing.T) {
	sender := &captureSender{}
	w := NewMailWorker(sender, "https://fintrack.example")

	msg := amqp.NewMailMessage(amqp.MailResetPassword, "a@example.com", "", "tok")
	if err := w.HandleMail(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(sender.body, "/reset-password?token=tok") {
		t.Fatalf("body missing link:\n%s", sender.body)
	}
	if !strings.Contains(sender.body, "Hi there") {
		t.Fatalf("empty display name should fall back:\n%s", sender.body)
	}
}

func TestHandleMailUnknownKind(t *testing.T) {
	w := NewMailWorker(&captureSender{}, "https://fintrack.example")
	msg := amqp.NewMailMessage("newsletter", "a@example.com", "A", "tok")
	if err := w.HandleMail(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestHandleMailSenderFailurePropagates(t *testing.T) {
	sendErr := errors.New("smtp down")
	w := NewMailWorker(&captureSender{err: sendErr}, "https://fintrack.example")

	msg := amqp.NewMailMessage(amqp.MailVerifyEmail, "a@example.com", "A", "tok")
	if err := w.HandleMail(context.Background(), msg); !errors.Is(err, sendErr) {
		t.Fatalf("got %v, want wrapped sender error", err)
	}
}
