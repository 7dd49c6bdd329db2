package routing

import (
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// tierMultipliers scale the intent-derived score (multiplicatively, before any
// additive adjustment) according to the customer's tier.
var tierMultipliers = map[state.CustomerTier]map[state.WorkerType]float64{
	state.TierPlatinum: {state.WorkerTier3: 1.3, state.WorkerSupervisor: 1.2},
	state.TierGold:     {state.WorkerTier2: 1.2, state.WorkerTier3: 1.1},
	state.TierSilver:   {state.WorkerTier1: 1.1, state.WorkerTier2: 1.0},
	state.TierBronze:   {state.WorkerTier1: 1.2},
}

// Score is the routing score for one worker type. Pure: depends only on the
// conversation snapshot.
func Score(c *state.Conversation, w state.WorkerType) float64 {
	score := intentWeights[CategorizeIntent(c.CurrentIntent)][w]

	if c.Customer != nil {
		if m, ok := tierMultipliers[c.Customer.Tier][w]; ok {
			score *= m
		}
	}

	complexity := float64(len(c.ResolutionAttempts)) * 0.15
	switch w {
	case state.WorkerTier2:
		score += complexity
	case state.WorkerTier3:
		score += complexity * 1.5
	case state.WorkerSupervisor:
		score += complexity * 0.5
	}

	if c.Sentiment == state.SentimentNegative || c.Sentiment == state.SentimentFrustrated {
		switch w {
		case state.WorkerSupervisor:
			score += 0.4
		case state.WorkerTier3:
			score += 0.3
		case state.WorkerTier1:
			score *= 0.7
		}
	}

	if c.EscalationLevel >= 1 {
		switch w {
		case state.WorkerSupervisor:
			score += 0.5
		case state.WorkerTier3:
			score += 0.3
		}
	}

	if c.SLABreachRisk {
		switch w {
		case state.WorkerTier3:
			score += 0.4
		case state.WorkerSupervisor:
			score += 0.3
		}
	}

	if c.IntentConfidence < 0.7 && w == state.WorkerSupervisor {
		score += 0.2
	}

	return score
}

// Scores evaluates every routable worker type.
func Scores(c *state.Conversation) map[state.WorkerType]float64 {
	out := make(map[state.WorkerType]float64, 6)
	for _, w := range state.AllWorkerTypes() {
		out[w] = Score(c, w)
	}
	return out
}

// Select returns the arg-max worker type. Ties resolve to the lower
// escalation tier so an even score never escalates unnecessarily.
func Select(c *state.Conversation) (state.WorkerType, float64) {
	best := state.WorkerTier1
	bestScore := -1.0
	for _, w := range state.AllWorkerTypes() {
		if s := Score(c, w); s > bestScore {
			best = w
			bestScore = s
		}
	}
	return best, bestScore
}
