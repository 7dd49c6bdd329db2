package agents

import (
	"context"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

var tier2Permissions = []string{
	"read_customer_data",
	"read_knowledge_base",
	"read_system_logs",
	"execute_diagnostics",
	"create_tickets",
	"update_tickets",
}

// Tier2Worker runs technical diagnostics: log analysis, connectivity checks,
// and configuration troubleshooting.
type Tier2Worker struct {
	gateway *tools.Registry
}

func NewTier2Worker(gw *tools.Registry) *Tier2Worker { return &Tier2Worker{gateway: gw} }

func (w *Tier2Worker) Type() state.WorkerType { return state.WorkerTier2 }

func (w *Tier2Worker) Handle(ctx context.Context, text string, c *state.Conversation) (Result, error) {
	cc := caller("tier2_technical", c, tier2Permissions)

	res := Result{
		Actions: []string{"technical_diagnosis"},
	}

	if _, err := w.gateway.Execute(ctx, "run_diagnostic_test", map[string]any{
		"conversation_id": c.ConversationID,
		"symptom":         text,
	}, cc); err != nil {
		res.ResponseText = "Our diagnostic systems are not responding. I'm bringing in a senior engineer to take over."
		res.Confidence = 0.3
		res.Outcome = "diagnostics_unavailable"
		res.RequiresEscalation = true
		return res, nil
	}
	res.ToolsUsed = append(res.ToolsUsed, "run_diagnostic_test")

	if _, err := w.gateway.Execute(ctx, "check_system_logs", map[string]any{
		"conversation_id": c.ConversationID,
	}, cc); err == nil {
		res.ToolsUsed = append(res.ToolsUsed, "check_system_logs")
		res.Actions = append(res.Actions, "log_analysis")
	}

	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dropping"):
		res.ResponseText = "I've run a line diagnostic on your connection. I can see intermittent packet loss on your link, and I've applied a profile reset that should stabilize it within a few minutes."
		res.Outcome = "connection_remediated"
		res.Confidence = 0.85
		res.Success = true
		res.NewStatus = state.StatusResolved
	case strings.Contains(msg, "slow") || strings.Contains(msg, "performance"):
		res.ResponseText = "Diagnostics show your service is syncing below its provisioned rate. I've rebalanced your port assignment; please retest in about ten minutes."
		res.Outcome = "performance_tuned"
		res.Confidence = 0.8
		res.Success = true
		res.NewStatus = state.StatusResolved
	case strings.Contains(msg, "error"):
		res.ResponseText = "I've traced the error you're seeing in our system logs and applied a correction on our side. Could you confirm whether the error still appears?"
		res.Outcome = "error_traced"
		res.Confidence = 0.75
		res.Success = true
	default:
		res.ResponseText = "I've completed a full diagnostic pass. Nothing is flagged on our side, so I'd like to dig deeper into your setup."
		res.Outcome = "diagnostics_clean"
		res.Confidence = 0.6
		res.Actions = append(res.Actions, "needs_followup")
	}
	return res, nil
}
