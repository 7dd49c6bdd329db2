package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/config"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/observability"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/workflow"
)

// Engine is the slice of the workflow engine the API needs.
type Engine interface {
	ProcessTurn(ctx context.Context, conversationID, customerID, text string) (workflow.Result, error)
	GetState(ctx context.Context, conversationID string) (*state.Conversation, error)
}

type Server struct {
	cfg        config.Config
	engine     Engine
	gateway    *tools.Registry
	nodeWindow *observability.NodeWindow
	hub        *hub
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, engine Engine, gateway *tools.Registry, nodeWindow *observability.NodeWindow) *Server {
	return &Server{
		cfg:        cfg,
		engine:     engine,
		gateway:    gateway,
		nodeWindow: nodeWindow,
		hub:        newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a customer's
				// conversation if the service is exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Broadcast fans an engine event out to subscribed websocket connections.
// Wire it as the engine's OnEvent callback.
func (s *Server) Broadcast(evt workflow.Event) {
	s.hub.broadcast(evt)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/conversations/turn", s.handleTurn)
	r.Get("/v1/conversations/{id}", s.handleGetConversation)
	r.Get("/v1/conversations/{id}/transcript", s.handleGetTranscript)
	r.Get("/v1/conversations/ws", s.handleConversationWS)
	r.Get("/v1/conversations/{id}/ws", s.handleConversationWS)
	r.Get("/v1/capabilities/stats", s.handleCapabilityStats)
	r.Get("/v1/perf/nodes", s.handleNodePerf)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type turnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	Message        string `json:"message"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.engine.ProcessTurn(r.Context(), req.ConversationID, req.CustomerID, req.Message)
	switch {
	case errors.Is(err, workflow.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "empty_message", err.Error())
		return
	case errors.Is(err, workflow.ErrConversationClosed):
		respondError(w, http.StatusConflict, "conversation_closed", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "turn_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_conversation_id", "missing conversation id")
		return
	}
	c, err := s.engine.GetState(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_conversation_id", "missing conversation id")
		return
	}
	c, err := s.engine.GetState(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": c.ConversationID,
		"status":          c.Status,
		"transcript":      c.History,
	})
}

func (s *Server) handleCapabilityStats(w http.ResponseWriter, _ *http.Request) {
	if s.gateway == nil {
		respondJSON(w, http.StatusOK, map[string]tools.Stats{})
		return
	}
	respondJSON(w, http.StatusOK, s.gateway.Snapshot())
}

func (s *Server) handleNodePerf(w http.ResponseWriter, _ *http.Request) {
	if s.nodeWindow == nil {
		respondError(w, http.StatusNotFound, "perf_disabled", "node latency window not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.nodeWindow.Snapshot())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
