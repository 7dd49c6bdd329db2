package workflow

import (
	"context"
	"time"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/routing"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// slaWarningWindow is how close to the SLA deadline a ticket may get before
// the conversation is flagged at risk.
const slaWarningWindow = 15 * time.Minute

const clarificationQuestion = "I want to make sure I understand correctly. Could you tell me a bit more about what you need help with?"

// step executes one node and returns the next. Classification and worker
// failures are converted to the error path here, never raised.
func (e *Engine) step(ctx context.Context, node Node, c *state.Conversation, t *turn) Node {
	switch node {
	case NodeCustomerEntry:
		return e.customerEntry(c, t)
	case NodeIntentClassification:
		return e.intentClassification(ctx, c, t)
	case NodeClarificationNeeded:
		return e.clarificationNeeded(c, t)
	case NodeSmartRouting:
		return e.smartRouting(c)
	case NodeTier1, NodeTier2, NodeTier3, NodeSales, NodeBilling, NodeSupervisor:
		return e.workerStep(ctx, node, c, t)
	case NodeEscalationHandler:
		return e.escalationHandler(c)
	case NodeQualityCheck:
		return e.qualityCheck(c)
	case NodeHumanHandoff:
		return e.humanHandoff(c, t)
	case NodeConversationTimeout:
		e.closeExpired(c, e.clock())
		return NodeEnd
	default:
		c.AppendError(e.clock(), "WorkerFailure", "unknown node", string(node))
		return NodeErrorHandler
	}
}

func (e *Engine) customerEntry(c *state.Conversation, t *turn) Node {
	now := e.clock()
	c.CurrentMessage = t.text
	c.AppendTurn(state.Turn{
		Timestamp: now,
		Speaker:   state.SpeakerCustomer,
		Text:      t.text,
	})
	if len(c.History) == 1 {
		c.Status = state.StatusNew
	} else {
		c.Status = state.StatusInProgress
	}
	if c.Customer == nil && t.customerID != "" {
		c.Customer = &state.CustomerProfile{
			ID:   t.customerID,
			Tier: state.TierBronze,
		}
	}
	if c.Ticket != nil && !c.Ticket.SLADeadline.IsZero() {
		c.SLABreachRisk = now.Add(slaWarningWindow).After(c.Ticket.SLADeadline)
	}
	return NodeIntentClassification
}

func (e *Engine) intentClassification(ctx context.Context, c *state.Conversation, t *turn) Node {
	cls, err := e.classifier.Classify(ctx, t.text, c)
	if err != nil {
		c.CurrentIntent = "unknown"
		c.AppendError(e.clock(), "ClassificationFailure", err.Error(), string(NodeIntentClassification))
		return NodeErrorHandler
	}
	c.CurrentIntent = cls.Intent
	c.IntentConfidence = cls.Confidence
	c.Sentiment = cls.Sentiment
	c.SentimentScore = cls.SentimentScore

	if routing.EscalationIntent(cls.Intent) {
		// Direct route to the supervisor, not an escalation event:
		// escalation_level stays where it is.
		c.CurrentWorker = state.WorkerSupervisor
		return NodeSupervisor
	}
	if cls.Confidence >= 0.85 {
		return NodeSmartRouting
	}
	return NodeClarificationNeeded
}

func (e *Engine) clarificationNeeded(c *state.Conversation, t *turn) Node {
	now := e.clock()
	if c.ClarificationAttempts() >= 2 {
		c.CurrentWorker = state.WorkerSupervisor
		return NodeSupervisor
	}
	if c.TimeoutMinutes > 0 && now.Sub(c.SessionStart) > time.Duration(c.TimeoutMinutes)*time.Minute {
		return NodeConversationTimeout
	}
	c.AppendTurn(state.Turn{
		Timestamp: now,
		Speaker:   state.SpeakerSystem,
		Text:      clarificationQuestion,
		Intent:    "clarification_request",
	})
	c.IntentConfidence = 0
	c.Status = state.StatusPendingCustomer
	t.response = clarificationQuestion
	return NodeSuspend
}

func (e *Engine) smartRouting(c *state.Conversation) Node {
	w, score := routing.Select(c)
	c.CurrentWorker = w
	c.PerformanceMetrics["last_routing_score"] = score
	if e.metrics != nil {
		e.metrics.RoutingDecisions.WithLabelValues(string(w)).Inc()
	}
	return WorkerNode(w)
}

func (e *Engine) workerStep(ctx context.Context, node Node, c *state.Conversation, t *turn) Node {
	wt := state.WorkerType(node)
	worker, ok := e.roster[wt]
	if !ok {
		c.AppendError(e.clock(), "WorkerFailure", "no worker registered", string(node))
		return NodeErrorHandler
	}
	c.CurrentWorker = wt

	res, err := worker.Handle(ctx, t.text, c)
	if err != nil {
		c.AppendError(e.clock(), "WorkerFailure", err.Error(), string(node))
		return NodeErrorHandler
	}

	now := e.clock()
	c.AppendTurn(state.Turn{
		Timestamp:  now,
		Speaker:    state.SpeakerWorker,
		Text:       res.ResponseText,
		Intent:     c.CurrentIntent,
		Confidence: res.Confidence,
		WorkerType: wt,
	})
	t.response = res.ResponseText
	t.confidence = res.Confidence

	c.ToolsUsed = append(c.ToolsUsed, res.ToolsUsed...)
	c.ConfidenceScore = res.Confidence
	c.ResolutionAttempts = append(c.ResolutionAttempts, state.ResolutionAttempt{
		WorkerType: wt,
		Timestamp:  now,
		Actions:    res.Actions,
		ToolsUsed:  res.ToolsUsed,
		Outcome:    res.Outcome,
		Confidence: res.Confidence,
		Success:    res.Success,
	})
	if res.NewStatus != "" && res.Success {
		c.Status = res.NewStatus
	} else if c.Status == state.StatusNew {
		c.Status = state.StatusInProgress
	}

	if res.RequiresHuman {
		c.RequiresHuman = true
		return NodeHumanHandoff
	}
	if c.Status == state.StatusResolved {
		return NodeQualityCheck
	}

	if wt == state.WorkerSupervisor {
		if c.EscalationLevel >= 3 {
			return NodeEscalationHandler
		}
		return NodeSmartRouting
	}

	if res.RequiresEscalation {
		c.ShouldEscalate = true
		return NodeEscalationHandler
	}
	if routing.EscalationTriggered(c) {
		return NodeEscalationHandler
	}
	if routing.NeedsTransfer(c) {
		return NodeSmartRouting
	}
	if routing.CanContinue(c) {
		c.Status = state.StatusPendingCustomer
		return NodeSuspend
	}
	return NodeEscalationHandler
}

func (e *Engine) escalationHandler(c *state.Conversation) Node {
	now := e.clock()
	reason := routing.EscalationReason(c)
	target := routing.EscalationTarget(c)
	pkg := buildContextPackage(c, reason, now)

	c.Escalations = append(c.Escalations, state.EscalationRecord{
		From:      c.CurrentWorker,
		To:        target,
		Timestamp: now,
		Reason:    reason,
		Context:   pkg,
	})
	c.EscalationLevel++
	c.PreviousWorkers = append(c.PreviousWorkers, c.CurrentWorker)
	c.ShouldEscalate = false
	c.Status = state.StatusEscalated
	if e.metrics != nil {
		e.metrics.Escalations.WithLabelValues(string(target)).Inc()
	}

	if target == state.WorkerHuman {
		c.RequiresHuman = true
		return NodeHumanHandoff
	}
	c.CurrentWorker = target
	if target == state.WorkerSupervisor {
		return NodeSupervisor
	}
	return NodeSmartRouting
}

func (e *Engine) qualityCheck(c *state.Conversation) Node {
	score := routing.QualityScore(c)
	c.PerformanceMetrics["quality_score"] = score
	c.PerformanceMetrics["predicted_satisfaction"] = routing.PredictSatisfaction(c)
	c.SatisfactionRisk = routing.SatisfactionRisk(c)

	switch {
	case score >= 0.8:
		c.PerformanceMetrics["quality_outcome"] = "approved"
		return NodeEnd
	case score >= 0.6:
		c.PerformanceMetrics["quality_outcome"] = "needs_followup"
		// Explicit re-open: the only sanctioned exit from resolved.
		c.Status = state.StatusInProgress
		return NodeSmartRouting
	default:
		c.PerformanceMetrics["quality_outcome"] = "escalate"
		c.Status = state.StatusInProgress
		c.CurrentWorker = state.WorkerSupervisor
		return NodeSupervisor
	}
}

func (e *Engine) humanHandoff(c *state.Conversation, t *turn) Node {
	now := e.clock()
	c.RequiresHuman = true
	c.Status = state.StatusEscalated
	c.PerformanceMetrics["handoff_context"] = buildContextPackage(c, "human_handoff", now)

	text := "You're being connected to a member of our support team who has the full context of this conversation."
	c.AppendTurn(state.Turn{
		Timestamp: now,
		Speaker:   state.SpeakerSystem,
		Text:      text,
	})
	if t.response == "" {
		t.response = text
	}
	return NodeEnd
}

// errorHandler is invoked directly by the engine rather than through step so
// that budget and deadline failures can reach it even when the graph cannot.
func (e *Engine) errorHandler(c *state.Conversation, t *turn) {
	now := e.clock()
	c.Status = state.StatusEscalated
	c.RequiresHuman = true
	c.PerformanceMetrics["handoff_context"] = buildContextPackage(c, "error_handler", now)

	text := "Something went wrong on our side while handling your request. A member of our team will take over from here with everything you've told us so far."
	c.AppendTurn(state.Turn{
		Timestamp: now,
		Speaker:   state.SpeakerSystem,
		Text:      text,
	})
	t.response = text
}
