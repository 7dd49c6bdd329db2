package agents

import (
	"context"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

var tier1Permissions = []string{
	"read_customer_data",
	"read_knowledge_base",
	"create_tickets",
	"update_tickets",
	"send_notifications",
}

var tier1Responses = map[string]string{
	"account_access": "I can help you with account access issues. Let me walk you through some quick steps to get you back into your account.",
	"password_reset": "I'll help you reset your password right away. This is a simple process that should take just a few minutes.",
	"billing_basic":  "I can help you understand your billing and account charges. Let me pull up your account information.",
	"service_status": "Let me check the current status of our services and see if there are any known issues affecting your area.",
	"general":        "Thanks for reaching out. Let me look into that for you.",
}

// Tier1Worker handles first-line support: FAQ answers, account basics, and
// simple troubleshooting backed by the knowledge base.
type Tier1Worker struct {
	gateway *tools.Registry
}

func NewTier1Worker(gw *tools.Registry) *Tier1Worker { return &Tier1Worker{gateway: gw} }

func (w *Tier1Worker) Type() state.WorkerType { return state.WorkerTier1 }

func (w *Tier1Worker) Handle(ctx context.Context, text string, c *state.Conversation) (Result, error) {
	cc := caller("tier1_support", c, tier1Permissions)
	msg := strings.ToLower(text)

	res := Result{
		Actions: []string{"first_line_support"},
	}

	if c.Customer == nil {
		if _, err := w.gateway.Execute(ctx, "get_customer_profile", map[string]any{
			"conversation_id": c.ConversationID,
		}, cc); err == nil {
			res.ToolsUsed = append(res.ToolsUsed, "get_customer_profile")
		}
	}

	topic := tier1Topic(msg)
	if _, err := w.gateway.Execute(ctx, "search_knowledge_base", map[string]any{
		"query": text,
		"topic": topic,
	}, cc); err != nil {
		res.ResponseText = "I'm having trouble looking that up right now. Let me get a specialist to help you."
		res.Confidence = 0.3
		res.Outcome = "knowledge_base_unavailable"
		res.RequiresEscalation = true
		return res, nil
	}
	res.ToolsUsed = append(res.ToolsUsed, "search_knowledge_base")

	reply, known := tier1Responses[topic]
	if !known {
		reply = tier1Responses["general"]
	}
	res.ResponseText = reply
	res.Outcome = topic + "_answered"

	if known {
		res.Confidence = 0.85
		res.Success = true
		res.NewStatus = state.StatusResolved
	} else {
		res.Confidence = 0.6
		res.Actions = append(res.Actions, "needs_followup")
	}
	return res, nil
}

func tier1Topic(msg string) string {
	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "reset"):
		return "password_reset"
	case strings.Contains(msg, "login") || strings.Contains(msg, "log in") ||
		strings.Contains(msg, "locked") || strings.Contains(msg, "access"):
		return "account_access"
	case strings.Contains(msg, "bill") || strings.Contains(msg, "charge"):
		return "billing_basic"
	case strings.Contains(msg, "outage") || strings.Contains(msg, "down") ||
		strings.Contains(msg, "status"):
		return "service_status"
	default:
		return "general"
	}
}
