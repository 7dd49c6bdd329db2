package state

import (
	"time"
)

type WorkerType string

const (
	WorkerTier1      WorkerType = "tier1_support"
	WorkerTier2      WorkerType = "tier2_technical"
	WorkerTier3      WorkerType = "tier3_expert"
	WorkerSales      WorkerType = "sales"
	WorkerBilling    WorkerType = "billing"
	WorkerSupervisor WorkerType = "supervisor"

	// WorkerHuman is not a routable worker; it only appears as an
	// escalation target once the automated hierarchy is exhausted.
	WorkerHuman WorkerType = "human_handoff"
)

// AllWorkerTypes lists routable workers in tier order. The order is load-bearing:
// routing ties resolve toward the earliest entry.
func AllWorkerTypes() []WorkerType {
	return []WorkerType{WorkerTier1, WorkerTier2, WorkerTier3, WorkerSales, WorkerBilling, WorkerSupervisor}
}

// TierRank returns the position of a worker type in the escalation order.
// Unknown types sort last.
func (w WorkerType) TierRank() int {
	switch w {
	case WorkerTier1:
		return 0
	case WorkerTier2:
		return 1
	case WorkerTier3:
		return 2
	case WorkerSales:
		return 3
	case WorkerBilling:
		return 4
	case WorkerSupervisor:
		return 5
	default:
		return 6
	}
}

type CustomerTier string

const (
	TierBronze   CustomerTier = "bronze"
	TierSilver   CustomerTier = "silver"
	TierGold     CustomerTier = "gold"
	TierPlatinum CustomerTier = "platinum"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentNegative   Sentiment = "negative"
	SentimentFrustrated Sentiment = "frustrated"
)

type Status string

const (
	StatusNew             Status = "new"
	StatusInProgress      Status = "in_progress"
	StatusPendingCustomer Status = "pending_customer"
	StatusEscalated       Status = "escalated"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
)

type Speaker string

const (
	SpeakerCustomer Speaker = "customer"
	SpeakerWorker   Speaker = "worker"
	SpeakerSystem   Speaker = "system"
)

type SatisfactionRisk string

const (
	RiskLow    SatisfactionRisk = "low"
	RiskMedium SatisfactionRisk = "medium"
	RiskHigh   SatisfactionRisk = "high"
)

type CustomerProfile struct {
	ID            string       `json:"customer_id"`
	Name          string       `json:"name,omitempty"`
	Email         string       `json:"email,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Tier          CustomerTier `json:"tier"`
	AccountStatus string       `json:"account_status,omitempty"`
	LifetimeValue float64      `json:"lifetime_value,omitempty"`
}

type Ticket struct {
	ID          string    `json:"ticket_id"`
	Priority    Priority  `json:"priority"`
	Category    string    `json:"category,omitempty"`
	SLADeadline time.Time `json:"sla_deadline,omitempty"`
}

// Turn is a single entry in the conversation transcript. History is
// append-only; entries are never edited in place.
type Turn struct {
	Timestamp  time.Time  `json:"timestamp"`
	Speaker    Speaker    `json:"speaker"`
	Text       string     `json:"text"`
	Intent     string     `json:"intent,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	WorkerType WorkerType `json:"worker_type,omitempty"`
}

type ResolutionAttempt struct {
	WorkerType WorkerType `json:"worker_type"`
	Timestamp  time.Time  `json:"timestamp"`
	Actions    []string   `json:"actions,omitempty"`
	ToolsUsed  []string   `json:"tools_used,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	Confidence float64    `json:"confidence"`
	Success    bool       `json:"success"`
}

// ContextPackage is the snapshot handed to the next worker (or human) on
// every escalation. PII in the transcript slice is redacted before the
// package leaves the engine.
type ContextPackage struct {
	Summary            string              `json:"summary"`
	Urgency            string              `json:"urgency"`
	Customer           *CustomerProfile    `json:"customer,omitempty"`
	Intent             string              `json:"intent,omitempty"`
	IntentConfidence   float64             `json:"intent_confidence"`
	Sentiment          Sentiment           `json:"sentiment"`
	SentimentScore     float64             `json:"sentiment_score"`
	ResolutionAttempts []ResolutionAttempt `json:"resolution_attempts,omitempty"`
	ToolsUsed          []string            `json:"tools_used,omitempty"`
	EscalationLevel    int                 `json:"escalation_level"`
	PreviousWorkers    []WorkerType        `json:"previous_workers,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	RecommendedActions []string            `json:"recommended_actions,omitempty"`
	Transcript         []Turn              `json:"transcript,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

type EscalationRecord struct {
	From      WorkerType      `json:"from"`
	To        WorkerType      `json:"to"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason"`
	Context   *ContextPackage `json:"context,omitempty"`
}

type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Node      string    `json:"node"`
}

// Conversation is the persistent per-conversation state record. Only the
// workflow engine writes it; every other component receives a snapshot and
// returns results for the engine to apply.
type Conversation struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`

	Customer *CustomerProfile `json:"customer,omitempty"`
	Ticket   *Ticket          `json:"ticket,omitempty"`

	History          []Turn    `json:"history"`
	CurrentMessage   string    `json:"current_message"`
	CurrentIntent    string    `json:"current_intent"`
	IntentConfidence float64   `json:"intent_confidence"`
	Sentiment        Sentiment `json:"sentiment"`
	SentimentScore   float64   `json:"sentiment_score"`

	CurrentWorker   WorkerType         `json:"current_worker_type"`
	PreviousWorkers []WorkerType       `json:"previous_workers,omitempty"`
	EscalationLevel int                `json:"escalation_level"`
	Escalations     []EscalationRecord `json:"escalation_history,omitempty"`

	ResolutionAttempts []ResolutionAttempt `json:"resolution_attempts,omitempty"`
	ToolsUsed          []string            `json:"tools_used,omitempty"`

	Status          Status  `json:"status"`
	RequiresHuman   bool    `json:"requires_human"`
	ShouldEscalate  bool    `json:"should_escalate"`
	ConfidenceScore float64 `json:"confidence_score"`

	SLABreachRisk    bool             `json:"sla_breach_risk"`
	SatisfactionRisk SatisfactionRisk `json:"customer_satisfaction_risk"`

	SessionStart   time.Time `json:"session_start"`
	LastActivity   time.Time `json:"last_activity"`
	TimeoutMinutes int       `json:"timeout_minutes"`

	PerformanceMetrics map[string]any `json:"performance_metrics,omitempty"`
	ErrorLog           []ErrorEntry   `json:"error_log,omitempty"`
}

func New(sessionID, conversationID string, now time.Time) *Conversation {
	return &Conversation{
		SessionID:          sessionID,
		ConversationID:     conversationID,
		Sentiment:          SentimentNeutral,
		Status:             StatusNew,
		SatisfactionRisk:   RiskLow,
		SessionStart:       now,
		LastActivity:       now,
		TimeoutMinutes:     30,
		PerformanceMetrics: make(map[string]any),
	}
}

// AppendTurn adds a transcript entry and bumps LastActivity.
func (c *Conversation) AppendTurn(t Turn) {
	c.History = append(c.History, t)
	if t.Timestamp.After(c.LastActivity) {
		c.LastActivity = t.Timestamp
	}
}

func (c *Conversation) AppendError(now time.Time, kind, message, node string) {
	c.ErrorLog = append(c.ErrorLog, ErrorEntry{
		Timestamp: now,
		Kind:      kind,
		Message:   message,
		Node:      node,
	})
}

// AttemptsBy counts resolution attempts made by the given worker type.
func (c *Conversation) AttemptsBy(w WorkerType) int {
	n := 0
	for _, a := range c.ResolutionAttempts {
		if a.WorkerType == w {
			n++
		}
	}
	return n
}

// ClarificationAttempts counts clarification request turns in the transcript.
func (c *Conversation) ClarificationAttempts() int {
	n := 0
	for _, t := range c.History {
		if t.Intent == "clarification_request" {
			n++
		}
	}
	return n
}

// LastCustomerTurn returns the most recent customer entry, or nil.
func (c *Conversation) LastCustomerTurn() *Turn {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Speaker == SpeakerCustomer {
			t := c.History[i]
			return &t
		}
	}
	return nil
}

// Terminal reports whether the conversation accepts no further turns.
func (c *Conversation) Terminal() bool {
	return c.Status == StatusClosed
}

// Expired reports whether the conversation has been idle past its TTL.
func (c *Conversation) Expired(now time.Time) bool {
	if c.TimeoutMinutes <= 0 {
		return false
	}
	return now.Sub(c.LastActivity) > time.Duration(c.TimeoutMinutes)*time.Minute
}

// Clone returns a deep copy safe to hand outside the engine.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.Customer != nil {
		cust := *c.Customer
		out.Customer = &cust
	}
	if c.Ticket != nil {
		tk := *c.Ticket
		out.Ticket = &tk
	}
	out.History = append([]Turn(nil), c.History...)
	out.PreviousWorkers = append([]WorkerType(nil), c.PreviousWorkers...)
	out.Escalations = cloneEscalations(c.Escalations)
	out.ResolutionAttempts = cloneAttempts(c.ResolutionAttempts)
	out.ToolsUsed = append([]string(nil), c.ToolsUsed...)
	out.ErrorLog = append([]ErrorEntry(nil), c.ErrorLog...)
	if c.PerformanceMetrics != nil {
		out.PerformanceMetrics = make(map[string]any, len(c.PerformanceMetrics))
		for k, v := range c.PerformanceMetrics {
			out.PerformanceMetrics[k] = v
		}
	}
	return &out
}

func cloneEscalations(in []EscalationRecord) []EscalationRecord {
	if in == nil {
		return nil
	}
	out := make([]EscalationRecord, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Context != nil {
			ctx := *out[i].Context
			ctx.ResolutionAttempts = cloneAttempts(ctx.ResolutionAttempts)
			ctx.ToolsUsed = append([]string(nil), ctx.ToolsUsed...)
			ctx.PreviousWorkers = append([]WorkerType(nil), ctx.PreviousWorkers...)
			ctx.RecommendedActions = append([]string(nil), ctx.RecommendedActions...)
			ctx.Transcript = append([]Turn(nil), ctx.Transcript...)
			out[i].Context = &ctx
		}
	}
	return out
}

func cloneAttempts(in []ResolutionAttempt) []ResolutionAttempt {
	if in == nil {
		return nil
	}
	out := make([]ResolutionAttempt, len(in))
	copy(out, in)
	for i := range out {
		out[i].Actions = append([]string(nil), in[i].Actions...)
		out[i].ToolsUsed = append([]string(nil), in[i].ToolsUsed...)
	}
	return out
}
