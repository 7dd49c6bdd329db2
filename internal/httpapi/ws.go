package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/policy"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/protocol"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/workflow"
)

// hub tracks websocket subscribers and fans engine events out to them.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

type subscriber struct {
	out chan any

	mu            sync.Mutex
	conversations map[string]bool
}

func (s *subscriber) subscribe(id string) {
	s.mu.Lock()
	s.conversations[id] = true
	s.mu.Unlock()
}

func (s *subscriber) unsubscribe(id string) {
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
}

func (s *subscriber) wants(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

func (h *hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func (h *hub) broadcast(evt workflow.Event) {
	text := evt.ResponseText
	if redacted, changed := policy.RedactPII(text); changed {
		text = redacted
	}
	msg := protocol.ConversationEvent{
		Type:           protocol.TypeConversationEvent,
		ConversationID: evt.ConversationID,
		Outcome:        evt.Outcome,
		Status:         string(evt.Status),
		WorkerType:     string(evt.WorkerType),
		ResponseText:   text,
		Timestamp:      evt.Timestamp,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.wants(evt.ConversationID) {
			continue
		}
		select {
		case s.out <- msg:
		default:
			// Keep websocket writes single-threaded; drop when the
			// subscriber's queue is saturated.
		}
	}
}

func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := &subscriber{
		out:           make(chan any, 256),
		conversations: make(map[string]bool),
	}
	if id := chi.URLParam(r, "id"); id != "" {
		sub.subscribe(id)
	}
	if id := r.URL.Query().Get("conversation_id"); id != "" {
		sub.subscribe(id)
	}
	s.hub.add(sub)
	defer s.hub.remove(sub)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			sub.enqueue(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientControl:
			s.handleWSControl(sub, msg)
		case protocol.ClientTurn:
			s.handleWSTurn(ctx, sub, msg)
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) handleWSControl(sub *subscriber, msg protocol.ClientControl) {
	switch msg.Action {
	case protocol.ActionSubscribe:
		sub.subscribe(msg.ConversationID)
	case protocol.ActionUnsubscribe:
		sub.unsubscribe(msg.ConversationID)
	}
	sub.enqueue(protocol.SystemEvent{
		Type:           protocol.TypeSystemEvent,
		ConversationID: msg.ConversationID,
		Code:           msg.Action + "d",
	})
}

func (s *Server) handleWSTurn(ctx context.Context, sub *subscriber, msg protocol.ClientTurn) {
	res, err := s.engine.ProcessTurn(ctx, msg.ConversationID, msg.CustomerID, msg.Text)
	if err != nil {
		code := "turn_failed"
		switch {
		case errors.Is(err, workflow.ErrEmptyMessage):
			code = "empty_message"
		case errors.Is(err, workflow.ErrConversationClosed):
			code = "conversation_closed"
		default:
			log.Printf("httpapi: ws turn failed (conversation %s): %v", msg.ConversationID, err)
		}
		sub.enqueue(protocol.ErrorEvent{
			Type:           protocol.TypeErrorEvent,
			ConversationID: msg.ConversationID,
			Code:           code,
			Source:         "engine",
			Retryable:      code == "turn_failed",
			Detail:         err.Error(),
		})
		return
	}
	// The submitting connection follows its conversation automatically.
	sub.subscribe(res.ConversationID)
	sub.enqueue(protocol.TurnResult{
		Type:           protocol.TypeTurnResult,
		ConversationID: res.ConversationID,
		SessionID:      res.SessionID,
		ResponseText:   res.ResponseText,
		Status:         string(res.Status),
		WorkerType:     string(res.WorkerType),
		Confidence:     res.Confidence,
		Outcome:        res.Outcome,
	})
}

func (s *subscriber) enqueue(msg any) {
	select {
	case s.out <- msg:
	default:
	}
}
