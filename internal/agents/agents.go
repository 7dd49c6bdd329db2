// Package agents holds the classifier and the per-worker-type handlers the
// workflow engine dispatches to. Dispatch is a fixed table over worker types,
// never open-ended registration.
package agents

import (
	"context"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

// Classification is the outcome of one intent-classification pass over a
// customer message.
type Classification struct {
	Intent         string
	Confidence     float64
	Sentiment      state.Sentiment
	SentimentScore float64
}

// Classifier scores a customer message. Implementations may fail; the engine
// routes classification failures through its error path.
type Classifier interface {
	Classify(ctx context.Context, text string, c *state.Conversation) (Classification, error)
}

// Result is what a worker hands back to the engine after one turn.
type Result struct {
	ResponseText       string
	Confidence         float64
	Success            bool
	Actions            []string
	ToolsUsed          []string
	Outcome            string
	NewStatus          state.Status // empty leaves the ticket status unchanged
	RequiresEscalation bool
	RequiresHuman      bool
}

// Worker processes one customer turn for its worker type. Workers reach
// external systems only through the capability gateway.
type Worker interface {
	Type() state.WorkerType
	Handle(ctx context.Context, text string, c *state.Conversation) (Result, error)
}

// Roster is the engine's dispatch table.
type Roster map[state.WorkerType]Worker

// NewRoster builds the stock worker set over a shared capability gateway.
func NewRoster(gw *tools.Registry) Roster {
	workers := []Worker{
		NewTier1Worker(gw),
		NewTier2Worker(gw),
		NewTier3Worker(gw),
		NewSalesWorker(gw),
		NewBillingWorker(gw),
		NewSupervisorWorker(gw),
	}
	r := make(Roster, len(workers))
	for _, w := range workers {
		r[w.Type()] = w
	}
	return r
}

// caller builds the gateway caller context for a worker acting on a
// conversation.
func caller(name string, c *state.Conversation, permissions []string) tools.CallerContext {
	return tools.CallerContext{
		Caller:         name,
		ConversationID: c.ConversationID,
		Permissions:    permissions,
	}
}
