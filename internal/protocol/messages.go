package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTurn        MessageType = "client_turn"
	TypeClientControl     MessageType = "client_control"
	TypeTurnResult        MessageType = "turn_result"
	TypeConversationEvent MessageType = "conversation_event"
	TypeSystemEvent       MessageType = "system_event"
	TypeErrorEvent        MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientTurn carries one inbound customer message over the websocket.
type ClientTurn struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	CustomerID     string      `json:"customer_id,omitempty"`
	Text           string      `json:"text"`
	TSMs           int64       `json:"ts_ms,omitempty"`
}

// ClientControl carries connection-scoped actions such as subscribing to a
// conversation's event stream.
type ClientControl struct {
	Type           MessageType `json:"type"`
	Action         string      `json:"action"`
	ConversationID string      `json:"conversation_id,omitempty"`
}

// TurnResult is the websocket rendering of a processed turn.
type TurnResult struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	SessionID      string      `json:"session_id"`
	ResponseText   string      `json:"response_text"`
	Status         string      `json:"status"`
	WorkerType     string      `json:"worker_type,omitempty"`
	Confidence     float64     `json:"confidence"`
	Outcome        string      `json:"outcome"`
}

// ConversationEvent mirrors engine events (turn outcomes, inactivity
// timeouts) for subscribed connections.
type ConversationEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Outcome        string      `json:"outcome"`
	Status         string      `json:"status"`
	WorkerType     string      `json:"worker_type,omitempty"`
	ResponseText   string      `json:"response_text,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

type SystemEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Code           string      `json:"code"`
	Detail         string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Code           string      `json:"code"`
	Source         string      `json:"source"`
	Retryable      bool        `json:"retryable"`
	Detail         string      `json:"detail"`
}

// ControlActions accepted on client_control messages.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTurn:
		var msg ClientTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("invalid client_turn: empty text")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionSubscribe, ActionUnsubscribe:
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
		if strings.TrimSpace(msg.ConversationID) == "" {
			return nil, errors.New("invalid client_control: missing conversation_id")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
