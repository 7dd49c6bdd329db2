package routing

import (
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// QualityScore grades a conversation's resolution in [0, 1]:
// 40% resolution success, 30% customer sentiment, 20% efficiency,
// 10% worker confidence, then multiplicative escalation and error penalties.
func QualityScore(c *state.Conversation) float64 {
	base := 0.0
	if c.Status == state.StatusResolved {
		base += 0.4
	}
	base += clamp01(c.SentimentScore) * 0.3

	efficiency := 1 - float64(len(c.ResolutionAttempts))/5
	if efficiency < 0 {
		efficiency = 0
	}
	base += efficiency * 0.2
	base += clamp01(c.ConfidenceScore) * 0.1

	if c.EscalationLevel > 0 {
		penalty := 0.1 * float64(c.EscalationLevel)
		if penalty > 0.3 {
			penalty = 0.3
		}
		base *= 1 - penalty
	}
	if n := len(c.ErrorLog); n > 0 {
		penalty := 0.05 * float64(n)
		if penalty > 0.2 {
			penalty = 0.2
		}
		base *= 1 - penalty
	}

	return clamp01(base)
}

// PredictSatisfaction estimates how the customer will rate the interaction.
func PredictSatisfaction(c *state.Conversation) float64 {
	score := 0.0
	if c.Sentiment == state.SentimentPositive {
		score += 0.4
	}
	if len(c.ResolutionAttempts) <= 2 {
		score += 0.3
	} else {
		score += 0.1
	}
	if c.ConfidenceScore >= 0.8 {
		score += 0.2
	}
	if c.EscalationLevel == 0 {
		score += 0.1
	}

	if c.Sentiment == state.SentimentNegative || c.Sentiment == state.SentimentFrustrated {
		score *= 0.5
	}
	if len(c.ErrorLog) > 0 {
		score *= 0.8
	}
	return clamp01(score)
}

// SatisfactionRisk bands the predicted satisfaction into the risk level
// carried on the conversation record.
func SatisfactionRisk(c *state.Conversation) state.SatisfactionRisk {
	switch sat := PredictSatisfaction(c); {
	case sat >= 0.7:
		return state.RiskLow
	case sat >= 0.4:
		return state.RiskMedium
	default:
		return state.RiskHigh
	}
}

// UrgencyLevel grades a human handoff for queue placement.
func UrgencyLevel(c *state.Conversation) string {
	if (c.Customer != nil && c.Customer.Tier == state.TierPlatinum) ||
		c.Sentiment == state.SentimentFrustrated ||
		c.SLABreachRisk ||
		len(c.ErrorLog) > 2 {
		return "high"
	}
	if (c.Customer != nil && c.Customer.Tier == state.TierGold) ||
		c.Sentiment == state.SentimentNegative ||
		c.EscalationLevel >= 2 ||
		len(c.ResolutionAttempts) >= 3 {
		return "medium"
	}
	return "low"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
