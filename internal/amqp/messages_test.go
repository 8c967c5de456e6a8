package amqp

import "testing"

func TestMailMessageRoundTrip(t *testing.T) {
	msg := NewMailMessage(MailVerifyEmail, "user@example.com", "User", "tok-123")
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := MailMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != MailVerifyEmail || got.To != "user@example.com" || got.Token != "tok-123" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMailMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     *MailMessage
		wantErr bool
	}{
		{"valid verification", NewMailMessage(MailVerifyEmail, "a@b.c", "A", "t"), false},
		{"valid reset", NewMailMessage(MailResetPassword, "a@b.c", "A", "t"), false},
		{"unknown kind", NewMailMessage("newsletter", "a@b.c", "A", "t"), true},
		{"missing recipient", NewMailMessage(MailVerifyEmail, "", "A", "t"), true},
		{"missing token", NewMailMessage(MailVerifyEmail, "a@b.c", "A", ""), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMailMessageFromJSONInvalid(t *testing.T) {
	if _, err := MailMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestTransactionEventRoundTrip(t *testing.T) {
	evt := NewTransactionEvent(EventCreated, "tx-1", "user-1")
	body, err := evt.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := TransactionEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Op != EventCreated || got.ID != "tx-1" || got.OwnerID != "user-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
