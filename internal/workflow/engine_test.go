package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/agents"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeClassifier struct {
	fn func(text string) (agents.Classification, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, c *state.Conversation) (agents.Classification, error) {
	return f.fn(text)
}

func classifierReturning(intent string, conf float64, s state.Sentiment, score float64) *fakeClassifier {
	return &fakeClassifier{fn: func(string) (agents.Classification, error) {
		return agents.Classification{Intent: intent, Confidence: conf, Sentiment: s, SentimentScore: score}, nil
	}}
}

type fakeWorker struct {
	wt     state.WorkerType
	handle func(call int, text string, c *state.Conversation) (agents.Result, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeWorker) Type() state.WorkerType { return f.wt }

func (f *fakeWorker) Handle(ctx context.Context, text string, c *state.Conversation) (agents.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.handle(call, text, c)
}

func resolving(wt state.WorkerType, conf float64) *fakeWorker {
	return &fakeWorker{wt: wt, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{
			ResponseText: "resolved by " + string(wt),
			Confidence:   conf,
			Success:      true,
			Outcome:      "resolved",
			NewStatus:    state.StatusResolved,
		}, nil
	}}
}

func fakeRoster(overrides ...*fakeWorker) agents.Roster {
	r := agents.Roster{}
	for _, wt := range []state.WorkerType{
		state.WorkerTier1, state.WorkerTier2, state.WorkerTier3,
		state.WorkerSales, state.WorkerBilling, state.WorkerSupervisor,
	} {
		r[wt] = resolving(wt, 0.9)
	}
	for _, w := range overrides {
		r[w.wt] = w
	}
	return r
}

func newTestEngine(t *testing.T, cls agents.Classifier, roster agents.Roster, clk *fakeClock) (*Engine, *state.InMemoryStore) {
	t.Helper()
	store := state.NewInMemoryStore()
	e, err := New(Options{
		Store:               store,
		Classifier:          cls,
		Roster:              roster,
		Clock:               clk.Now,
		TurnTimeout:         5 * time.Second,
		ConversationTimeout: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e, store
}

func TestGraphValidates(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestProcessTurnRejectsEmptyMessage(t *testing.T) {
	e, _ := newTestEngine(t, classifierReturning("general_inquiry", 0.9, state.SentimentNeutral, 0.5), fakeRoster(), newFakeClock())
	if _, err := e.ProcessTurn(context.Background(), "", "", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestProcessTurnCreatesConversation(t *testing.T) {
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "", "cust-1", "my account is locked")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatal("expected a generated conversation id")
	}
	c, err := e.GetState(context.Background(), res.ConversationID)
	if err != nil {
		t.Fatalf("GetState error: %v", err)
	}
	if c.Customer == nil || c.Customer.ID != "cust-1" {
		t.Fatalf("customer = %+v, want id cust-1", c.Customer)
	}
	if len(c.History) == 0 || c.History[0].Speaker != state.SpeakerCustomer {
		t.Fatalf("history = %+v, want customer turn first", c.History)
	}
}

func TestScenarioCancellationRoutesToSupervisor(t *testing.T) {
	e, _ := newTestEngine(t, classifierReturning("cancellation", 0.9, state.SentimentNeutral, 0.5), fakeRoster(), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "conv-a", "", "I want to cancel my subscription")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.WorkerType != state.WorkerSupervisor {
		t.Fatalf("WorkerType = %q, want supervisor", res.WorkerType)
	}
	c, _ := e.GetState(context.Background(), "conv-a")
	if c.EscalationLevel != 0 {
		t.Fatalf("EscalationLevel = %d, want 0 (direct route, not an escalation)", c.EscalationLevel)
	}
	if len(c.Escalations) != 0 {
		t.Fatalf("Escalations = %d, want none", len(c.Escalations))
	}
	if c.Status != state.StatusResolved {
		t.Fatalf("Status = %q, want resolved", c.Status)
	}
	if got := c.PerformanceMetrics["quality_outcome"]; got != "approved" {
		t.Fatalf("quality_outcome = %v, want approved", got)
	}
}

func TestScenarioLowConfidenceWorkerEscalatesToTier2(t *testing.T) {
	failing := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{ResponseText: "could not fix", Confidence: 0.5, Outcome: "unresolved"}, nil
	}}
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(failing), newFakeClock())

	if _, err := e.ProcessTurn(context.Background(), "conv-b", "", "locked out of my account"); err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	c, _ := e.GetState(context.Background(), "conv-b")
	if len(c.Escalations) == 0 {
		t.Fatal("expected at least one escalation")
	}
	first := c.Escalations[0]
	if first.From != state.WorkerTier1 || first.To != state.WorkerTier2 {
		t.Fatalf("first escalation %s -> %s, want tier1_support -> tier2_technical", first.From, first.To)
	}
	if first.Reason == "" {
		t.Fatal("expected an escalation reason")
	}
	if first.Context == nil || first.Context.Summary == "" {
		t.Fatal("expected a context package on the escalation record")
	}
	if c.EscalationLevel != len(c.Escalations) {
		t.Fatalf("EscalationLevel = %d, len(Escalations) = %d, want equal", c.EscalationLevel, len(c.Escalations))
	}
}

func TestScenarioVIPSentimentEscalatesDespiteSuccess(t *testing.T) {
	succeeding := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		// Successful turn but no resolution claim.
		return agents.Result{ResponseText: "working on it", Confidence: 0.9, Success: true, Outcome: "in_progress"}, nil
	}}
	e, store := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.2), fakeRoster(succeeding), newFakeClock())

	seed := state.New("sess-c", "conv-c", newFakeClock().Now())
	seed.Customer = &state.CustomerProfile{ID: "vip", Tier: state.TierPlatinum}
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	if _, err := e.ProcessTurn(context.Background(), "conv-c", "", "my account is locked again"); err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	c, _ := e.GetState(context.Background(), "conv-c")
	if len(c.Escalations) == 0 {
		t.Fatal("expected escalation for platinum customer with low sentiment score")
	}
	found := false
	for _, rec := range c.Escalations {
		if strings.Contains(rec.Reason, "vip_customer_escalation") {
			found = true
		}
	}
	if !found {
		t.Fatalf("escalation reasons %+v, want vip_customer_escalation", c.Escalations[0].Reason)
	}
}

func TestScenarioQualityNeedsFollowup(t *testing.T) {
	tier1 := &fakeWorker{wt: state.WorkerTier1, handle: func(call int, _ string, _ *state.Conversation) (agents.Result, error) {
		if call == 1 {
			return agents.Result{ResponseText: "fixed", Confidence: 0.5, Success: true, Outcome: "resolved", NewStatus: state.StatusResolved}, nil
		}
		// Follow-up pass: keep working, no resolution claim yet.
		return agents.Result{ResponseText: "double checking", Confidence: 0.9, Success: true, Outcome: "in_progress"}, nil
	}}
	e, store := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.4), fakeRoster(tier1), newFakeClock())

	seed := state.New("sess-d", "conv-d", newFakeClock().Now())
	seed.EscalationLevel = 1
	seed.Escalations = []state.EscalationRecord{{From: state.WorkerTier1, To: state.WorkerTier2, Timestamp: newFakeClock().Now(), Reason: "low_confidence"}}
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	if _, err := e.ProcessTurn(context.Background(), "conv-d", "", "is it fixed now"); err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	c, _ := e.GetState(context.Background(), "conv-d")
	score, ok := c.PerformanceMetrics["quality_score"].(float64)
	if !ok {
		t.Fatalf("quality_score missing: %+v", c.PerformanceMetrics)
	}
	if score < 0.656 || score > 0.658 {
		t.Fatalf("quality_score = %v, want ~0.657", score)
	}
	if got := c.PerformanceMetrics["quality_outcome"]; got != "needs_followup" {
		t.Fatalf("quality_outcome = %v, want needs_followup", got)
	}
	if c.Status != state.StatusPendingCustomer {
		t.Fatalf("Status = %q, want pending_customer after follow-up suspension", c.Status)
	}
}

func TestScenarioInactivitySweep(t *testing.T) {
	clk := newFakeClock()
	e, _ := newTestEngine(t, classifierReturning("general_inquiry", 0.6, state.SentimentNeutral, 0.5), fakeRoster(), clk)

	if _, err := e.ProcessTurn(context.Background(), "conv-e", "", "hello"); err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	clk.Advance(31 * time.Minute)

	n, err := e.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired error: %v", err)
	}
	if n != 1 {
		t.Fatalf("SweepExpired closed %d, want 1", n)
	}
	c, _ := e.GetState(context.Background(), "conv-e")
	if c.Status != state.StatusClosed {
		t.Fatalf("Status = %q, want closed", c.Status)
	}
	if _, err := e.ProcessTurn(context.Background(), "conv-e", "", "anyone there?"); !errors.Is(err, ErrConversationClosed) {
		t.Fatalf("error = %v, want ErrConversationClosed", err)
	}
}

func TestLowConfidenceAsksForClarification(t *testing.T) {
	e, _ := newTestEngine(t, classifierReturning("general_inquiry", 0.6, state.SentimentNeutral, 0.5), fakeRoster(), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "conv-cl", "", "hmm")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.Status != state.StatusPendingCustomer {
		t.Fatalf("Status = %q, want pending_customer", res.Status)
	}
	if res.ResponseText == "" {
		t.Fatal("expected a clarification question")
	}
	c, _ := e.GetState(context.Background(), "conv-cl")
	if c.IntentConfidence != 0 {
		t.Fatalf("IntentConfidence = %v, want reset to 0", c.IntentConfidence)
	}
	if c.ClarificationAttempts() != 1 {
		t.Fatalf("ClarificationAttempts = %d, want 1", c.ClarificationAttempts())
	}
}

func TestRepeatedClarificationGoesToSupervisor(t *testing.T) {
	e, _ := newTestEngine(t, classifierReturning("general_inquiry", 0.6, state.SentimentNeutral, 0.5), fakeRoster(), newFakeClock())

	for i := 0; i < 2; i++ {
		if _, err := e.ProcessTurn(context.Background(), "conv-cl2", "", "hmm"); err != nil {
			t.Fatalf("ProcessTurn %d error: %v", i, err)
		}
	}
	res, err := e.ProcessTurn(context.Background(), "conv-cl2", "", "hmm")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.WorkerType != state.WorkerSupervisor {
		t.Fatalf("WorkerType = %q, want supervisor after repeated clarification", res.WorkerType)
	}
}

func TestClassifierFailureRoutesToErrorHandler(t *testing.T) {
	cls := &fakeClassifier{fn: func(string) (agents.Classification, error) {
		return agents.Classification{}, errors.New("model unavailable")
	}}
	e, _ := newTestEngine(t, cls, fakeRoster(), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "conv-err", "", "help")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.Outcome != string(NodeErrorHandler) {
		t.Fatalf("Outcome = %q, want error_handler", res.Outcome)
	}
	c, _ := e.GetState(context.Background(), "conv-err")
	if c.Status != state.StatusEscalated || !c.RequiresHuman {
		t.Fatalf("status = %q requiresHuman = %v, want escalated + human", c.Status, c.RequiresHuman)
	}
	if c.CurrentIntent != "unknown" {
		t.Fatalf("CurrentIntent = %q, want unknown", c.CurrentIntent)
	}
	if len(c.ErrorLog) == 0 || c.ErrorLog[0].Kind != "ClassificationFailure" {
		t.Fatalf("ErrorLog = %+v, want ClassificationFailure entry", c.ErrorLog)
	}
	if c.PerformanceMetrics["handoff_context"] == nil {
		t.Fatal("expected handoff context package on error path")
	}
}

func TestWorkerErrorRoutesToErrorHandler(t *testing.T) {
	broken := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{}, errors.New("panic in worker")
	}}
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(broken), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "conv-we", "", "locked out of my account")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.Outcome != string(NodeErrorHandler) {
		t.Fatalf("Outcome = %q, want error_handler", res.Outcome)
	}
	c, _ := e.GetState(context.Background(), "conv-we")
	if len(c.ErrorLog) == 0 || c.ErrorLog[0].Kind != "WorkerFailure" {
		t.Fatalf("ErrorLog = %+v, want WorkerFailure entry", c.ErrorLog)
	}
}

func TestSupervisorHandoffProducesContextPackage(t *testing.T) {
	sup := &fakeWorker{wt: state.WorkerSupervisor, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{ResponseText: "connecting you now", Confidence: 0.9, Outcome: "handoff", RequiresHuman: true}, nil
	}}
	e, _ := newTestEngine(t, classifierReturning("escalation", 0.95, state.SentimentNegative, 0.2), fakeRoster(sup), newFakeClock())

	res, err := e.ProcessTurn(context.Background(), "conv-h", "", "I demand to speak to a manager")
	if err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	if res.Outcome != string(NodeHumanHandoff) {
		t.Fatalf("Outcome = %q, want human_handoff", res.Outcome)
	}
	c, _ := e.GetState(context.Background(), "conv-h")
	if !c.RequiresHuman || c.Status != state.StatusEscalated {
		t.Fatalf("status = %q requiresHuman = %v", c.Status, c.RequiresHuman)
	}
	pkg, ok := c.PerformanceMetrics["handoff_context"].(*state.ContextPackage)
	if !ok {
		t.Fatalf("handoff_context = %T, want *state.ContextPackage", c.PerformanceMetrics["handoff_context"])
	}
	if pkg.Summary == "" || pkg.Urgency == "" || len(pkg.RecommendedActions) == 0 {
		t.Fatalf("incomplete handoff package: %+v", pkg)
	}
}

func TestSerializedTurnsPerConversation(t *testing.T) {
	continuing := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{ResponseText: "noted", Confidence: 0.9, Success: true, Outcome: "in_progress"}, nil
	}}
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(continuing), newFakeClock())

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.ProcessTurn(context.Background(), "conv-serial", "", fmt.Sprintf("message %d", i)); err != nil {
				t.Errorf("ProcessTurn %d error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	c, err := e.GetState(context.Background(), "conv-serial")
	if err != nil {
		t.Fatalf("GetState error: %v", err)
	}
	// Every turn must be visible in the final checkpoint: a lost update
	// would mean two turns interleaved on the same conversation.
	customerTurns := 0
	for _, turn := range c.History {
		if turn.Speaker == state.SpeakerCustomer {
			customerTurns++
		}
	}
	if customerTurns != turns {
		t.Fatalf("customer turns = %d, want %d", customerTurns, turns)
	}
}

func TestEscalationMonotonic(t *testing.T) {
	failing := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{ResponseText: "no luck", Confidence: 0.4, Outcome: "unresolved"}, nil
	}}
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(failing), newFakeClock())

	prev := 0
	for i := 0; i < 3; i++ {
		if _, err := e.ProcessTurn(context.Background(), "conv-mono", "", "still locked out"); err != nil {
			if errors.Is(err, ErrConversationClosed) {
				break
			}
			t.Fatalf("ProcessTurn %d error: %v", i, err)
		}
		c, _ := e.GetState(context.Background(), "conv-mono")
		if c.EscalationLevel < prev {
			t.Fatalf("EscalationLevel decreased: %d -> %d", prev, c.EscalationLevel)
		}
		if c.EscalationLevel != len(c.Escalations) {
			t.Fatalf("EscalationLevel = %d, len(Escalations) = %d", c.EscalationLevel, len(c.Escalations))
		}
		prev = c.EscalationLevel
	}
}

func TestResolutionAttemptsMatchWorker(t *testing.T) {
	failing := &fakeWorker{wt: state.WorkerTier1, handle: func(int, string, *state.Conversation) (agents.Result, error) {
		return agents.Result{ResponseText: "no luck", Confidence: 0.4, Outcome: "unresolved"}, nil
	}}
	e, _ := newTestEngine(t, classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5), fakeRoster(failing), newFakeClock())

	if _, err := e.ProcessTurn(context.Background(), "conv-attempt", "", "locked out"); err != nil {
		t.Fatalf("ProcessTurn error: %v", err)
	}
	c, _ := e.GetState(context.Background(), "conv-attempt")
	if len(c.ResolutionAttempts) == 0 {
		t.Fatal("expected resolution attempts")
	}
	for i, a := range c.ResolutionAttempts {
		if a.WorkerType == "" {
			t.Fatalf("attempt %d has empty worker type", i)
		}
	}
}

func TestCheckpointFailureSurfaces(t *testing.T) {
	store := &failingStore{Store: state.NewInMemoryStore()}
	e, err := New(Options{
		Store:      store,
		Classifier: classifierReturning("account_access", 0.9, state.SentimentNeutral, 0.5),
		Roster:     fakeRoster(),
		Clock:      newFakeClock().Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := e.ProcessTurn(context.Background(), "conv-ckpt", "", "locked out"); err == nil {
		t.Fatal("expected error when checkpoint save fails")
	}
}

type failingStore struct {
	state.Store
}

func (f *failingStore) Save(ctx context.Context, c *state.Conversation) error {
	return errors.New("store unavailable")
}
