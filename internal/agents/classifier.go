package agents

import (
	"context"
	"regexp"
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

type intentPattern struct {
	keywords []string
	patterns []*regexp.Regexp
	boost    float64
}

var intentPatterns = map[string]intentPattern{
	"account_access": {
		keywords: []string{
			"login", "log in", "sign in", "access", "password", "username",
			"account", "locked", "forgot password", "reset password",
			"can't access", "cannot login", "unable to login",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`can'?t\s*log\s*in`),
			regexp.MustCompile(`forgot\s+my\s+password`),
			regexp.MustCompile(`account\s+locked`),
			regexp.MustCompile(`reset\s+password`),
		},
		boost: 0.2,
	},
	"technical_support": {
		keywords: []string{
			"not working", "broken", "error", "issue", "problem", "bug",
			"slow", "loading", "connection", "network", "down", "outage",
			"technical", "fix", "repair",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`not\s+working`),
			regexp.MustCompile(`getting\s+an?\s+error`),
			regexp.MustCompile(`technical\s+(issue|problem)`),
			regexp.MustCompile(`something\s+is\s+(wrong|broken)`),
		},
		boost: 0.1,
	},
	"billing_inquiry": {
		keywords: []string{
			"bill", "billing", "charge", "payment", "invoice", "cost",
			"price", "fee", "refund", "paid", "pay", "owe", "balance", "statement",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`billing\s+(question|issue|problem)`),
			regexp.MustCompile(`charged\s+(me|wrong)`),
			regexp.MustCompile(`payment\s+(issue|problem)`),
		},
		boost: 0.15,
	},
	"sales_inquiry": {
		keywords: []string{
			"buy", "purchase", "upgrade", "plan", "pricing", "features",
			"product", "subscription", "package", "offer", "deal", "discount",
			"trial", "demo",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`want\s+to\s+buy`),
			regexp.MustCompile(`upgrade\s+my\s+plan`),
			regexp.MustCompile(`pricing\s+information`),
		},
		boost: 0.1,
	},
	"complaint": {
		keywords: []string{
			"complaint", "complain", "unhappy", "dissatisfied", "angry",
			"frustrated", "terrible", "awful", "worst", "horrible",
			"disappointed", "unacceptable", "poor service",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`want\s+to\s+complain`),
			regexp.MustCompile(`very\s+(unhappy|disappointed)`),
			regexp.MustCompile(`terrible\s+service`),
			regexp.MustCompile(`completely\s+unacceptable`),
		},
		boost: 0.3,
	},
	"cancellation": {
		keywords: []string{
			"cancel", "cancellation", "close account", "terminate",
			"end service", "unsubscribe",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`want\s+to\s+cancel`),
			regexp.MustCompile(`close\s+my\s+account`),
			regexp.MustCompile(`terminate\s+service`),
			regexp.MustCompile(`no\s+longer\s+need`),
		},
		boost: 0.25,
	},
	"general_inquiry": {
		keywords: []string{
			"question", "help", "information", "how to", "how do",
			"what is", "where", "when", "why", "explain",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`have\s+a\s+question`),
			regexp.MustCompile(`how\s+(do|to)`),
			regexp.MustCompile(`can\s+you\s+explain`),
		},
		boost: 0.05,
	},
}

var sentimentKeywords = map[state.Sentiment][]string{
	state.SentimentPositive: {
		"great", "excellent", "amazing", "wonderful", "fantastic",
		"love", "perfect", "awesome", "brilliant", "outstanding",
		"satisfied", "happy", "pleased", "thank you", "thanks",
	},
	state.SentimentNegative: {
		"terrible", "awful", "horrible", "worst", "hate", "angry",
		"disappointed", "unacceptable", "poor", "bad", "wrong",
		"broken", "useless", "annoying",
	},
	state.SentimentFrustrated: {
		"frustrated", "annoyed", "irritated", "fed up", "sick of",
		"ridiculous", "absurd", "waste of time", "pathetic",
	},
}

var negativePhrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`not\s+working`),
	regexp.MustCompile(`doesn'?t\s+work`),
	regexp.MustCompile(`this\s+is\s+(ridiculous|absurd)`),
	regexp.MustCompile(`waste\s+of\s+time`),
}

// KeywordClassifier is the built-in classifier: keyword and phrase-pattern
// scoring over a fixed intent table. Pure and deterministic, so replayable.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

func (k *KeywordClassifier) Classify(ctx context.Context, text string, c *state.Conversation) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	msg := preprocess(text)

	intent, conf := classifyIntent(msg)
	sentiment, sentimentScore := analyzeSentiment(msg)

	return Classification{
		Intent:         intent,
		Confidence:     conf,
		Sentiment:      sentiment,
		SentimentScore: sentimentScore,
	}, nil
}

func preprocess(text string) string {
	msg := strings.ToLower(strings.TrimSpace(text))
	return strings.Join(strings.Fields(msg), " ")
}

func classifyIntent(msg string) (string, float64) {
	bestIntent := "general_inquiry"
	bestScore := 0.0

	// Sorted iteration keeps classification deterministic on score ties.
	for _, name := range sortedIntentNames() {
		p := intentPatterns[name]
		score := 0.0
		for _, kw := range p.keywords {
			if strings.Contains(msg, kw) {
				score += 1.0
			}
		}
		for _, re := range p.patterns {
			if re.MatchString(msg) {
				score += p.boost
			}
		}
		max := float64(len(p.keywords)) + float64(len(p.patterns))*p.boost
		if max > 0 {
			score /= max
		}
		if score > 1 {
			score = 1
		}
		if score > bestScore {
			bestIntent, bestScore = name, score
		}
	}
	if bestScore == 0 {
		return "general_inquiry", 0.5
	}
	// Scale sparse keyword overlap into a usable confidence band.
	conf := 0.5 + bestScore*2.5
	if conf > 1 {
		conf = 1
	}
	return bestIntent, conf
}

func analyzeSentiment(msg string) (state.Sentiment, float64) {
	hits := map[state.Sentiment]float64{}
	for sentiment, keywords := range sentimentKeywords {
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				hits[sentiment]++
			}
		}
	}
	for _, re := range negativePhrasePatterns {
		if re.MatchString(msg) {
			hits[state.SentimentNegative] += 0.5
		}
	}

	dominant := state.SentimentNeutral
	max := 0.0
	// Frustrated outranks negative outranks positive on ties.
	for _, s := range []state.Sentiment{state.SentimentFrustrated, state.SentimentNegative, state.SentimentPositive} {
		if hits[s] > max {
			dominant, max = s, hits[s]
		}
	}
	if max == 0 {
		return state.SentimentNeutral, 0.5
	}

	switch dominant {
	case state.SentimentPositive:
		score := max / 3
		if score > 1 {
			score = 1
		}
		return dominant, score
	default:
		inv := max / 2
		if inv > 1 {
			inv = 1
		}
		return dominant, 1 - inv
	}
}

func sortedIntentNames() []string {
	return []string{
		"account_access",
		"billing_inquiry",
		"cancellation",
		"complaint",
		"general_inquiry",
		"sales_inquiry",
		"technical_support",
	}
}
