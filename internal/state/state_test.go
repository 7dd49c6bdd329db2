package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func baseTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestNewDefaults(t *testing.T) {
	now := baseTime()
	c := New("sess", "conv", now)
	if c.Status != StatusNew {
		t.Fatalf("Status = %q, want new", c.Status)
	}
	if c.Sentiment != SentimentNeutral {
		t.Fatalf("Sentiment = %q, want neutral", c.Sentiment)
	}
	if c.TimeoutMinutes != 30 {
		t.Fatalf("TimeoutMinutes = %d, want 30", c.TimeoutMinutes)
	}
	if !c.LastActivity.Equal(now) || !c.SessionStart.Equal(now) {
		t.Fatalf("timestamps = %v / %v, want %v", c.SessionStart, c.LastActivity, now)
	}
}

func TestAppendTurnBumpsLastActivity(t *testing.T) {
	now := baseTime()
	c := New("sess", "conv", now)
	later := now.Add(5 * time.Minute)
	c.AppendTurn(Turn{Timestamp: later, Speaker: SpeakerCustomer, Text: "hi"})
	if !c.LastActivity.Equal(later) {
		t.Fatalf("LastActivity = %v, want %v", c.LastActivity, later)
	}
	// Out-of-order timestamps must not move the clock backwards.
	c.AppendTurn(Turn{Timestamp: now, Speaker: SpeakerSystem, Text: "noted"})
	if !c.LastActivity.Equal(later) {
		t.Fatalf("LastActivity = %v after stale turn, want %v", c.LastActivity, later)
	}
}

func TestExpired(t *testing.T) {
	now := baseTime()
	c := New("sess", "conv", now)
	if c.Expired(now.Add(29 * time.Minute)) {
		t.Fatal("expired before TTL")
	}
	if !c.Expired(now.Add(31 * time.Minute)) {
		t.Fatal("not expired after TTL")
	}
	c.TimeoutMinutes = 0
	if c.Expired(now.Add(24 * time.Hour)) {
		t.Fatal("zero TTL must mean never expires")
	}
}

func TestAttemptCounters(t *testing.T) {
	c := New("sess", "conv", baseTime())
	c.ResolutionAttempts = []ResolutionAttempt{
		{WorkerType: WorkerTier1},
		{WorkerType: WorkerTier1},
		{WorkerType: WorkerTier2},
	}
	if got := c.AttemptsBy(WorkerTier1); got != 2 {
		t.Fatalf("AttemptsBy(tier1) = %d, want 2", got)
	}
	if got := c.AttemptsBy(WorkerSupervisor); got != 0 {
		t.Fatalf("AttemptsBy(supervisor) = %d, want 0", got)
	}

	c.AppendTurn(Turn{Speaker: SpeakerSystem, Intent: "clarification_request"})
	c.AppendTurn(Turn{Speaker: SpeakerCustomer, Text: "I meant billing"})
	c.AppendTurn(Turn{Speaker: SpeakerSystem, Intent: "clarification_request"})
	if got := c.ClarificationAttempts(); got != 2 {
		t.Fatalf("ClarificationAttempts = %d, want 2", got)
	}
}

func TestLastCustomerTurn(t *testing.T) {
	c := New("sess", "conv", baseTime())
	if c.LastCustomerTurn() != nil {
		t.Fatal("expected nil on empty history")
	}
	c.AppendTurn(Turn{Speaker: SpeakerCustomer, Text: "first"})
	c.AppendTurn(Turn{Speaker: SpeakerWorker, Text: "reply"})
	c.AppendTurn(Turn{Speaker: SpeakerCustomer, Text: "second"})
	c.AppendTurn(Turn{Speaker: SpeakerSystem, Text: "note"})
	got := c.LastCustomerTurn()
	if got == nil || got.Text != "second" {
		t.Fatalf("LastCustomerTurn = %+v, want text %q", got, "second")
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := baseTime()
	c := New("sess", "conv", now)
	c.Customer = &CustomerProfile{ID: "cust", Tier: TierGold}
	c.Ticket = &Ticket{ID: "tick", Priority: PriorityHigh}
	c.AppendTurn(Turn{Timestamp: now, Speaker: SpeakerCustomer, Text: "original"})
	c.Escalations = []EscalationRecord{{
		From: WorkerTier1, To: WorkerTier2, Reason: "low_confidence",
		Context: &ContextPackage{Summary: "s", ToolsUsed: []string{"a"}},
	}}
	c.ResolutionAttempts = []ResolutionAttempt{{WorkerType: WorkerTier1, ToolsUsed: []string{"a"}}}
	c.PerformanceMetrics["k"] = 1.0

	cl := c.Clone()
	cl.Customer.Tier = TierBronze
	cl.Ticket.Priority = PriorityLow
	cl.History[0].Text = "mutated"
	cl.Escalations[0].Context.Summary = "mutated"
	cl.Escalations[0].Context.ToolsUsed[0] = "mutated"
	cl.ResolutionAttempts[0].ToolsUsed[0] = "mutated"
	cl.PerformanceMetrics["k"] = 2.0

	if c.Customer.Tier != TierGold || c.Ticket.Priority != PriorityHigh {
		t.Fatal("clone shares customer/ticket pointers")
	}
	if c.History[0].Text != "original" {
		t.Fatal("clone shares history backing array")
	}
	if c.Escalations[0].Context.Summary != "s" || c.Escalations[0].Context.ToolsUsed[0] != "a" {
		t.Fatal("clone shares escalation context")
	}
	if c.ResolutionAttempts[0].ToolsUsed[0] != "a" {
		t.Fatal("clone shares attempt tool slice")
	}
	if c.PerformanceMetrics["k"] != 1.0 {
		t.Fatal("clone shares performance metrics map")
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	now := baseTime()
	c := New("sess", "conv", now)
	c.CurrentIntent = "billing_inquiry"
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// Mutating the saved original must not leak into the store.
	c.CurrentIntent = "mutated"

	got, err := s.Load(ctx, "conv")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.CurrentIntent != "billing_inquiry" {
		t.Fatalf("CurrentIntent = %q, want billing_inquiry", got.CurrentIntent)
	}

	// And mutating a loaded copy must not leak back either.
	got.CurrentIntent = "mutated"
	again, _ := s.Load(ctx, "conv")
	if again.CurrentIntent != "billing_inquiry" {
		t.Fatalf("store record mutated through loaded copy: %q", again.CurrentIntent)
	}
}

func TestInMemoryStoreListExpired(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := baseTime()

	fresh := New("s1", "fresh", now)
	stale := New("s2", "stale", now.Add(-time.Hour))
	closed := New("s3", "closed", now.Add(-time.Hour))
	closed.Status = StatusClosed
	for _, c := range []*Conversation{fresh, stale, closed} {
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	ids, err := s.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "stale" {
		t.Fatalf("ListExpired = %v, want [stale]", ids)
	}
}

func TestTierRankOrder(t *testing.T) {
	prev := -1
	for _, w := range AllWorkerTypes() {
		if r := w.TierRank(); r <= prev {
			t.Fatalf("TierRank(%s) = %d, not increasing", w, r)
		} else {
			prev = r
		}
	}
	if WorkerHuman.TierRank() <= WorkerSupervisor.TierRank() {
		t.Fatal("human handoff must rank above supervisor")
	}
}
