package routing

import (
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// hierarchy is the static escalation ladder: current worker -> ordered
// fallback list indexed by escalation level. Total and acyclic.
var hierarchy = map[state.WorkerType][]state.WorkerType{
	state.WorkerTier1:      {state.WorkerTier2, state.WorkerSupervisor},
	state.WorkerTier2:      {state.WorkerTier3, state.WorkerSupervisor},
	state.WorkerTier3:      {state.WorkerSupervisor},
	state.WorkerSales:      {state.WorkerSupervisor},
	state.WorkerBilling:    {state.WorkerSupervisor},
	state.WorkerSupervisor: {state.WorkerHuman},
}

// EscalationTarget picks the next worker in the hierarchy for the current
// state. Human handoff is unconditional once requires_human is set or the
// escalation level cap is reached.
func EscalationTarget(c *state.Conversation) state.WorkerType {
	if c.RequiresHuman || c.EscalationLevel >= 3 {
		return state.WorkerHuman
	}
	path, ok := hierarchy[c.CurrentWorker]
	if !ok {
		return state.WorkerSupervisor
	}
	if c.EscalationLevel < len(path) {
		return path[c.EscalationLevel]
	}
	return state.WorkerSupervisor
}

// EscalationTriggered is the consolidated escalation-trigger predicate used
// by every worker node.
func EscalationTriggered(c *state.Conversation) bool {
	return len(escalationReasons(c)) > 0
}

// EscalationReason joins the fired predicate names, defaulting to the
// agent-requested reason when a node escalates without any predicate firing.
func EscalationReason(c *state.Conversation) string {
	reasons := escalationReasons(c)
	if len(reasons) == 0 {
		return "agent_requested_escalation"
	}
	return strings.Join(reasons, ", ")
}

func escalationReasons(c *state.Conversation) []string {
	var reasons []string
	if len(c.ResolutionAttempts) >= 3 {
		reasons = append(reasons, "multiple_failed_attempts")
	}
	if c.ConfidenceScore < 0.6 {
		reasons = append(reasons, "low_confidence")
	}
	if c.Sentiment == state.SentimentNegative || c.Sentiment == state.SentimentFrustrated {
		reasons = append(reasons, "negative_customer_sentiment")
	}
	if c.SLABreachRisk {
		reasons = append(reasons, "sla_breach_risk")
	}
	if c.Customer != nil && c.Customer.Tier == state.TierPlatinum && c.SentimentScore < 0.3 {
		reasons = append(reasons, "vip_customer_escalation")
	}
	return reasons
}

// CanContinue reports whether a worker node may loop on itself instead of
// escalating or transferring.
func CanContinue(c *state.Conversation) bool {
	return c.ConfidenceScore >= 0.7 &&
		len(c.ResolutionAttempts) < 3 &&
		c.Sentiment != state.SentimentFrustrated &&
		!c.SLABreachRisk
}

// transferKeywords flag an explicit customer request for a different agent.
var transferKeywords = []string{
	"speak to someone else",
	"different agent",
	"transfer me",
	"someone who can help",
	"supervisor",
	"manager",
}

// NeedsTransfer reports whether the conversation should go back through
// smart routing without counting as an escalation.
func NeedsTransfer(c *state.Conversation) bool {
	if c.IntentConfidence > 0.8 && OptimalWorker(c.CurrentIntent) != c.CurrentWorker {
		return true
	}
	if c.AttemptsBy(c.CurrentWorker) >= 2 && !lastAttemptSucceeded(c, c.CurrentWorker) {
		return true
	}
	return customerRequestedTransfer(c)
}

func lastAttemptSucceeded(c *state.Conversation, w state.WorkerType) bool {
	for i := len(c.ResolutionAttempts) - 1; i >= 0; i-- {
		if c.ResolutionAttempts[i].WorkerType == w {
			return c.ResolutionAttempts[i].Success
		}
	}
	return false
}

func customerRequestedTransfer(c *state.Conversation) bool {
	turn := c.LastCustomerTurn()
	if turn == nil {
		return false
	}
	text := strings.ToLower(turn.Text)
	for _, kw := range transferKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
