package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/agents"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/observability"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

var (
	ErrEmptyMessage       = errors.New("empty customer message")
	ErrConversationClosed = errors.New("conversation is closed")
)

// Result is the caller-facing outcome of one processed turn.
type Result struct {
	ConversationID string           `json:"conversation_id"`
	SessionID      string           `json:"session_id"`
	ResponseText   string           `json:"response_text"`
	Status         state.Status     `json:"status"`
	WorkerType     state.WorkerType `json:"worker_type,omitempty"`
	Confidence     float64          `json:"confidence"`
	Outcome        string           `json:"outcome"`
}

// Event is published to subscribers (the WS layer) after each turn and on
// sweeper-driven timeouts.
type Event struct {
	ConversationID string           `json:"conversation_id"`
	Outcome        string           `json:"outcome"`
	Status         state.Status     `json:"status"`
	WorkerType     state.WorkerType `json:"worker_type,omitempty"`
	ResponseText   string           `json:"response_text,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Options configures an Engine. Store, Classifier, and Roster are required.
type Options struct {
	Store      state.Store
	Classifier agents.Classifier
	Roster     agents.Roster

	Metrics    *observability.Metrics
	NodeWindow *observability.NodeWindow

	// Clock is injectable for tests; defaults to time.Now UTC.
	Clock func() time.Time

	TurnTimeout         time.Duration
	ConversationTimeout time.Duration
	SweepInterval       time.Duration
	MaxNodeSteps        int

	OnEvent func(Event)
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

// Engine is the workflow state machine driver. It owns the only mutable
// reference to a conversation while a turn is in flight; turns for the same
// conversation queue behind each other, turns for different conversations run
// concurrently.
type Engine struct {
	store      state.Store
	classifier agents.Classifier
	roster     agents.Roster

	metrics    *observability.Metrics
	nodeWindow *observability.NodeWindow

	clock               func() time.Time
	turnTimeout         time.Duration
	conversationTimeout time.Duration
	sweepInterval       time.Duration
	maxSteps            int

	onEvent func(Event)

	mu    sync.Mutex
	locks map[string]*convLock
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("workflow: classifier is required")
	}
	if len(opts.Roster) == 0 {
		return nil, errors.New("workflow: worker roster is required")
	}
	if err := Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:               opts.Store,
		classifier:          opts.Classifier,
		roster:              opts.Roster,
		metrics:             opts.Metrics,
		nodeWindow:          opts.NodeWindow,
		clock:               opts.Clock,
		turnTimeout:         opts.TurnTimeout,
		conversationTimeout: opts.ConversationTimeout,
		sweepInterval:       opts.SweepInterval,
		maxSteps:            opts.MaxNodeSteps,
		onEvent:             opts.OnEvent,
		locks:               make(map[string]*convLock),
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	if e.turnTimeout <= 0 {
		e.turnTimeout = 30 * time.Second
	}
	if e.conversationTimeout <= 0 {
		e.conversationTimeout = 30 * time.Minute
	}
	if e.sweepInterval <= 0 {
		e.sweepInterval = time.Minute
	}
	if e.maxSteps <= 0 {
		e.maxSteps = 25
	}
	return e, nil
}

// turn carries the per-turn scratch values the step functions share.
type turn struct {
	text       string
	customerID string
	response   string
	confidence float64
	steps      int
}

// ProcessTurn runs one inbound customer message through the graph until it
// terminates or suspends, checkpoints the state, and returns the response.
// An empty conversationID starts a new conversation.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, customerID, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyMessage
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	l := e.acquire(conversationID)
	defer e.release(conversationID, l)

	now := e.clock()
	c, err := e.store.Load(ctx, conversationID)
	switch {
	case errors.Is(err, state.ErrNotFound):
		c = state.New(uuid.NewString(), conversationID, now)
		c.TimeoutMinutes = int(e.conversationTimeout / time.Minute)
	case err != nil:
		return Result{}, fmt.Errorf("load conversation: %w", err)
	}
	if c.Terminal() {
		return Result{}, ErrConversationClosed
	}
	if c.Expired(now) {
		e.closeExpired(c, now)
		if err := e.store.Save(ctx, c); err != nil {
			return Result{}, fmt.Errorf("checkpoint: %w", err)
		}
		return e.finish(c, &turn{}, NodeConversationTimeout, now), nil
	}

	turnCtx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	t := &turn{text: text, customerID: customerID}
	final := e.run(turnCtx, c, t)

	// Write-before-respond: the checkpoint reflects this turn's final state
	// before the caller sees the response.
	if err := e.store.Save(ctx, c); err != nil {
		return Result{}, fmt.Errorf("checkpoint: %w", err)
	}

	res := e.finish(c, t, final, now)
	if e.metrics != nil {
		e.metrics.ObserveTurnLatency(e.clock().Sub(now))
	}
	return res, nil
}

// run drives the graph for one turn and returns the node that ended it.
func (e *Engine) run(ctx context.Context, c *state.Conversation, t *turn) Node {
	node := EntryNode
	for !node.Terminal() {
		if ctx.Err() != nil {
			c.AppendError(e.clock(), "TimeoutFailure", "turn exceeded processing budget", string(node))
			e.errorHandler(c, t)
			return NodeErrorHandler
		}
		if t.steps >= e.maxSteps {
			c.AppendError(e.clock(), "WorkerFailure", "node transition budget exhausted", string(node))
			e.errorHandler(c, t)
			return NodeErrorHandler
		}
		t.steps++

		start := e.clock()
		next := e.step(ctx, node, c, t)
		e.nodeWindow.Observe(string(node), float64(e.clock().Sub(start).Milliseconds()))

		if !next.Terminal() && !allowedTransition(node, next) {
			log.Printf("workflow: illegal transition %s -> %s (conversation %s)", node, next, c.ConversationID)
			c.AppendError(e.clock(), "WorkerFailure", fmt.Sprintf("illegal transition %s -> %s", node, next), string(node))
			e.errorHandler(c, t)
			return NodeErrorHandler
		}
		if next == NodeErrorHandler {
			e.errorHandler(c, t)
			return NodeErrorHandler
		}
		if next.Terminal() {
			return terminalOutcome(node, next)
		}
		node = next
	}
	return node
}

// terminalOutcome labels the turn with the node that produced the terminal
// transition, so suspensions report the suspending node.
func terminalOutcome(last, final Node) Node {
	if final == NodeSuspend {
		return NodeSuspend
	}
	return last
}

func (e *Engine) finish(c *state.Conversation, t *turn, final Node, now time.Time) Result {
	outcome := string(final)
	if e.metrics != nil {
		e.metrics.Turns.WithLabelValues(outcome).Inc()
	}
	res := Result{
		ConversationID: c.ConversationID,
		SessionID:      c.SessionID,
		ResponseText:   t.response,
		Status:         c.Status,
		WorkerType:     c.CurrentWorker,
		Confidence:     t.confidence,
		Outcome:        outcome,
	}
	e.publish(Event{
		ConversationID: c.ConversationID,
		Outcome:        outcome,
		Status:         c.Status,
		WorkerType:     c.CurrentWorker,
		ResponseText:   t.response,
		Timestamp:      now,
	})
	return res
}

func (e *Engine) publish(evt Event) {
	if e.onEvent != nil {
		e.onEvent(evt)
	}
}

// GetState returns a read-only snapshot of a conversation.
func (e *Engine) GetState(ctx context.Context, conversationID string) (*state.Conversation, error) {
	return e.store.Load(ctx, conversationID)
}

// acquire serializes turns per conversation: the second caller for the same
// id queues on the conversation mutex, never interleaves.
func (e *Engine) acquire(id string) *convLock {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &convLock{}
		e.locks[id] = l
	}
	l.refs++
	if e.metrics != nil && !ok {
		e.metrics.ActiveConversations.Inc()
	}
	e.mu.Unlock()

	l.mu.Lock()
	return l
}

func (e *Engine) release(id string, l *convLock) {
	l.mu.Unlock()
	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, id)
		if e.metrics != nil {
			e.metrics.ActiveConversations.Dec()
		}
	}
	e.mu.Unlock()
}

// Run drives the inactivity sweeper until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := e.SweepExpired(ctx); err != nil {
				log.Printf("workflow: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("workflow: closed %d expired conversation(s)", n)
			}
		}
	}
}

// SweepExpired closes every conversation idle past its TTL and returns how
// many it closed. The persisted record remains in the store.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	now := e.clock()
	ids, err := e.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}
	closed := 0
	for _, id := range ids {
		l := e.acquire(id)
		c, err := e.store.Load(ctx, id)
		if err != nil {
			e.release(id, l)
			if errors.Is(err, state.ErrNotFound) {
				continue
			}
			return closed, fmt.Errorf("load %s: %w", id, err)
		}
		if c.Terminal() || !c.Expired(now) {
			e.release(id, l)
			continue
		}
		e.closeExpired(c, now)
		if err := e.store.Save(ctx, c); err != nil {
			e.release(id, l)
			return closed, fmt.Errorf("checkpoint %s: %w", id, err)
		}
		e.release(id, l)
		closed++
		e.publish(Event{
			ConversationID: id,
			Outcome:        string(NodeConversationTimeout),
			Status:         c.Status,
			Timestamp:      now,
		})
		if e.metrics != nil {
			e.metrics.Turns.WithLabelValues(string(NodeConversationTimeout)).Inc()
		}
	}
	return closed, nil
}

func (e *Engine) closeExpired(c *state.Conversation, now time.Time) {
	c.Status = state.StatusClosed
	c.AppendTurn(state.Turn{
		Timestamp: now,
		Speaker:   state.SpeakerSystem,
		Text:      "This conversation has been closed due to inactivity.",
	})
}
