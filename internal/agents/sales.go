package agents

import (
	"context"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

var salesPermissions = []string{
	"read_customer_data",
	"read_knowledge_base",
	"create_tickets",
	"send_notifications",
}

// SalesWorker covers product inquiries, upgrades, and pricing.
type SalesWorker struct {
	gateway *tools.Registry
}

func NewSalesWorker(gw *tools.Registry) *SalesWorker { return &SalesWorker{gateway: gw} }

func (w *SalesWorker) Type() state.WorkerType { return state.WorkerSales }

func (w *SalesWorker) Handle(ctx context.Context, text string, c *state.Conversation) (Result, error) {
	cc := caller("sales", c, salesPermissions)

	res := Result{
		Actions: []string{"sales_consultation"},
	}

	if _, err := w.gateway.Execute(ctx, "get_account_services", map[string]any{
		"conversation_id": c.ConversationID,
	}, cc); err != nil {
		res.ResponseText = "I can't pull up your current plan right now. Let me have a colleague follow up with you shortly."
		res.Confidence = 0.4
		res.Outcome = "account_lookup_failed"
		res.RequiresEscalation = true
		return res, nil
	}
	res.ToolsUsed = append(res.ToolsUsed, "get_account_services")

	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "upgrade"):
		res.ResponseText = "Looking at your current plan, you'd qualify for our next tier with double the bandwidth at a small monthly increase. I can apply the upgrade now and it takes effect immediately."
		res.Outcome = "upgrade_quoted"
	case strings.Contains(msg, "price") || strings.Contains(msg, "pricing") || strings.Contains(msg, "cost"):
		res.ResponseText = "Here's a breakdown of our current plans and pricing against what you have today. Your tier also unlocks a loyalty discount I can apply."
		res.Outcome = "pricing_provided"
	case strings.Contains(msg, "trial") || strings.Contains(msg, "demo"):
		res.ResponseText = "I can set you up with a 30-day trial of the add-on so you can evaluate it on your own service before committing."
		res.Outcome = "trial_offered"
	default:
		res.ResponseText = "Happy to help you find the right plan. Based on your current services, here are the options that fit your usage."
		res.Outcome = "options_presented"
	}

	res.Confidence = 0.85
	res.Success = true
	res.NewStatus = state.StatusResolved
	return res, nil
}
