package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageTurn(t *testing.T) {
	raw := []byte(`{"type":"client_turn","conversation_id":"c1","customer_id":"cust-1","text":"my invoice looks wrong","ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	turn, ok := msg.(ClientTurn)
	if !ok {
		t.Fatalf("message type = %T, want ClientTurn", msg)
	}
	if turn.ConversationID != "c1" || turn.CustomerID != "cust-1" {
		t.Fatalf("unexpected client turn: %+v", turn)
	}
	if turn.Text != "my invoice looks wrong" {
		t.Fatalf("Text = %q", turn.Text)
	}
	if turn.TSMs != 123 {
		t.Fatalf("TSMs = %d, want %d", turn.TSMs, 123)
	}
}

func TestParseClientMessageTurnWithoutConversationID(t *testing.T) {
	// A missing conversation id is valid: it starts a new conversation.
	msg, err := ParseClientMessage([]byte(`{"type":"client_turn","text":"hello"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if turn := msg.(ClientTurn); turn.ConversationID != "" {
		t.Fatalf("ConversationID = %q, want empty", turn.ConversationID)
	}
}

func TestParseClientMessageRejectsEmptyTurn(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_turn","conversation_id":"c1","text":"   "}`)); err == nil {
		t.Fatal("expected validation error for blank text")
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","action":"subscribe","conversation_id":"c1"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.Action != ActionSubscribe || control.ConversationID != "c1" {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsBadControl(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown action", `{"type":"client_control","action":"mute","conversation_id":"c1"}`},
		{"missing conversation", `{"type":"client_control","action":"subscribe"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func BenchmarkParseClientMessageTurn(b *testing.B) {
	raw := []byte(`{"type":"client_turn","conversation_id":"c1","customer_id":"cust-1","text":"my invoice looks wrong this month","ts_ms":123456}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(ClientTurn); !ok {
			b.Fatalf("message type = %T, want ClientTurn", msg)
		}
	}
}
