package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	MailVerifyEmail   = "verify_email"
	MailResetPassword = "reset_password"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// MailMessage asks the worker to deliver one transactional email. The
// token is the single-use credential embedded in the link; the worker
// never needs database access to render the mail.
type MailMessage struct {
	Kind        string    `json:"kind"`
	To          string    `json:"to"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"token"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewMailMessage(kind, to, displayName, token string) *MailMessage {
	return &MailMessage{
		Kind:        kind,
		To:          to,
		DisplayName: displayName,
		Token:       token,
		Timestamp:   time.Now(),
	}
}

func (m *MailMessage) Validate() error {
	switch m.Kind {
	case MailVerifyEmail, MailResetPassword:
	default:
		return fmt.Errorf("unknown mail kind: %s", m.Kind)
	}
	if m.To == "" {
		return fmt.Errorf("mail message missing recipient")
	}
	if m.Token == "" {
		return fmt.Errorf("mail message missing token")
	}
	return nil
}

func (m *MailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MailMessageFromJSON(data []byte) (*MailMessage, error) {
	var msg MailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// TransactionEvent mirrors a transaction change onto the event queue so
// out-of-process consumers can observe the live feed.
type TransactionEvent struct {
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(op, id, ownerID string) *TransactionEvent {
	return &TransactionEvent{
		Op:        op,
		ID:        id,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
