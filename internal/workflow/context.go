package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/policy"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/routing"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

const transcriptWindow = 10

// buildContextPackage assembles the transfer snapshot attached to escalation
// records and human handoffs. The transcript slice is PII-redacted.
func buildContextPackage(c *state.Conversation, reason string, now time.Time) *state.ContextPackage {
	pkg := &state.ContextPackage{
		Summary:            conversationSummary(c),
		Urgency:            routing.UrgencyLevel(c),
		Intent:             c.CurrentIntent,
		IntentConfidence:   c.IntentConfidence,
		Sentiment:          c.Sentiment,
		SentimentScore:     c.SentimentScore,
		ResolutionAttempts: append([]state.ResolutionAttempt(nil), c.ResolutionAttempts...),
		ToolsUsed:          append([]string(nil), c.ToolsUsed...),
		EscalationLevel:    c.EscalationLevel,
		PreviousWorkers:    append([]state.WorkerType(nil), c.PreviousWorkers...),
		Reason:             reason,
		RecommendedActions: recommendedActions(c),
		Transcript:         redactedTranscript(c, transcriptWindow),
		CreatedAt:          now,
	}
	if c.Customer != nil {
		cust := *c.Customer
		pkg.Customer = &cust
	}
	return pkg
}

func conversationSummary(c *state.Conversation) string {
	workerTurns := 0
	for _, t := range c.History {
		if t.Speaker == state.SpeakerWorker {
			workerTurns++
		}
	}
	parts := []string{
		fmt.Sprintf("Customer Intent: %s", c.CurrentIntent),
		fmt.Sprintf("Confidence: %.2f", c.IntentConfidence),
		fmt.Sprintf("Current Status: %s", c.Status),
		fmt.Sprintf("Worker Interactions: %d", workerTurns),
		fmt.Sprintf("Resolution Attempts: %d", len(c.ResolutionAttempts)),
		fmt.Sprintf("Escalation Level: %d", c.EscalationLevel),
		fmt.Sprintf("Customer Sentiment: %s (%.2f)", c.Sentiment, c.SentimentScore),
		fmt.Sprintf("Tools Used: %s", toolsSummary(c.ToolsUsed)),
	}
	if c.Customer != nil {
		parts = append(parts, fmt.Sprintf("Customer Tier: %s", c.Customer.Tier))
	}
	return strings.Join(parts, " | ")
}

func toolsSummary(tools []string) string {
	if len(tools) == 0 {
		return "None"
	}
	seen := make(map[string]bool, len(tools))
	uniq := make([]string, 0, len(tools))
	for _, t := range tools {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ", ")
}

func recommendedActions(c *state.Conversation) []string {
	var recs []string
	if c.Sentiment == state.SentimentNegative || c.Sentiment == state.SentimentFrustrated {
		recs = append(recs, "Prioritize empathy and active listening")
		recs = append(recs, "Consider offering compensation or service credits")
	}
	if len(c.ResolutionAttempts) >= 3 {
		recs = append(recs, "Review all previous resolution attempts")
		recs = append(recs, "Consider escalating to technical specialist")
	}
	if c.Customer != nil && c.Customer.Tier == state.TierPlatinum {
		recs = append(recs, "Apply VIP customer service protocols")
		recs = append(recs, "Ensure immediate supervisor awareness")
	}
	if uniqueCount(c.ToolsUsed) >= 3 {
		recs = append(recs, "Review technical diagnostic results")
	}
	if c.SLABreachRisk {
		recs = append(recs, "URGENT: Address SLA breach risk immediately")
	}
	if len(c.ErrorLog) > 0 {
		recs = append(recs, "Review system errors encountered during conversation")
	}
	if len(recs) == 0 {
		recs = append(recs, "Review conversation history before responding")
	}
	return recs
}

func uniqueCount(items []string) int {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[it] = true
	}
	return len(seen)
}

func redactedTranscript(c *state.Conversation, n int) []state.Turn {
	start := len(c.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]state.Turn, 0, len(c.History)-start)
	for _, t := range c.History[start:] {
		if redacted, changed := policy.RedactPII(t.Text); changed {
			t.Text = redacted
		}
		out = append(out, t)
	}
	return out
}
