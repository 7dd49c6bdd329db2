package agents

import (
	"context"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

var supervisorPermissions = []string{
	"read_customer_data",
	"read_knowledge_base",
	"read_system_logs",
	"read_billing_data",
	"create_tickets",
	"update_tickets",
	"send_notifications",
	"transfer_conversations",
	"write_analytics",
}

var humanDemandKeywords = []string{
	"human", "real person", "speak to a manager", "talk to a manager",
	"talk to a person", "not a bot",
}

// SupervisorWorker reviews escalated conversations with full authority: it
// either resolves directly or decides the conversation needs a human.
type SupervisorWorker struct {
	gateway *tools.Registry
}

func NewSupervisorWorker(gw *tools.Registry) *SupervisorWorker {
	return &SupervisorWorker{gateway: gw}
}

func (w *SupervisorWorker) Type() state.WorkerType { return state.WorkerSupervisor }

func (w *SupervisorWorker) Handle(ctx context.Context, text string, c *state.Conversation) (Result, error) {
	cc := caller("supervisor", c, supervisorPermissions)

	res := Result{
		Actions: []string{"supervisor_review"},
	}

	if _, err := w.gateway.Execute(ctx, "log_interaction_metrics", map[string]any{
		"conversation_id":  c.ConversationID,
		"escalation_level": c.EscalationLevel,
	}, cc); err == nil {
		res.ToolsUsed = append(res.ToolsUsed, "log_interaction_metrics")
	}

	if w.needsHuman(text, c) {
		res.ResponseText = "I understand this needs personal attention. I'm connecting you with a member of our team right now, and they'll have the full history of this conversation."
		res.Confidence = 0.9
		res.Outcome = "human_handoff_approved"
		res.RequiresHuman = true
		res.Actions = append(res.Actions, "human_handoff_decision")
		return res, nil
	}

	if c.Ticket != nil {
		if _, err := w.gateway.Execute(ctx, "update_ticket_status", map[string]any{
			"conversation_id": c.ConversationID,
			"status":          "supervisor_resolved",
		}, cc); err == nil {
			res.ToolsUsed = append(res.ToolsUsed, "update_ticket_status")
		}
	}

	res.ResponseText = "I've personally reviewed everything that's happened on this case and applied a resolution with a service credit for the trouble. You'll receive a written summary shortly."
	res.Confidence = 0.9
	res.Success = true
	res.Outcome = "supervisor_resolved"
	res.NewStatus = state.StatusResolved
	return res, nil
}

func (w *SupervisorWorker) needsHuman(text string, c *state.Conversation) bool {
	if c.EscalationLevel >= 2 {
		return true
	}
	if c.Customer != nil && c.Customer.Tier == state.TierPlatinum && c.Sentiment == state.SentimentFrustrated {
		return true
	}
	msg := strings.ToLower(text)
	for _, kw := range humanDemandKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
