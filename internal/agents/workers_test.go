package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
)

func newGateway() *tools.Registry {
	gw := tools.NewRegistry()
	tools.RegisterDefaults(gw)
	return gw
}

func failCapability(gw *tools.Registry, name string) {
	gw.Register(tools.Capability{Name: name}, func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return nil, errors.New("backend down")
	})
}

func TestNewRosterCoversAllWorkerTypes(t *testing.T) {
	roster := NewRoster(newGateway())
	for _, wt := range []state.WorkerType{
		state.WorkerTier1, state.WorkerTier2, state.WorkerTier3,
		state.WorkerSales, state.WorkerBilling, state.WorkerSupervisor,
	} {
		w, ok := roster[wt]
		if !ok {
			t.Fatalf("roster missing worker %q", wt)
		}
		if w.Type() != wt {
			t.Fatalf("roster[%q].Type() = %q", wt, w.Type())
		}
	}
}

func TestTier1ResolvesPasswordReset(t *testing.T) {
	w := NewTier1Worker(newGateway())
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "I need to reset my password", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.NewStatus != state.StatusResolved {
		t.Fatalf("NewStatus = %q, want resolved", res.NewStatus)
	}
	if res.Outcome != "password_reset_answered" {
		t.Fatalf("Outcome = %q", res.Outcome)
	}
	if len(res.ToolsUsed) == 0 {
		t.Fatal("expected gateway tools to be used")
	}
}

func TestTier1EscalatesWhenKnowledgeBaseDown(t *testing.T) {
	gw := newGateway()
	failCapability(gw, "search_knowledge_base")
	w := NewTier1Worker(gw)
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "how do I change my plan", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.RequiresEscalation {
		t.Fatal("expected escalation request")
	}
}

func TestTier2ResolvesConnectionIssue(t *testing.T) {
	w := NewTier2Worker(newGateway())
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "my connection keeps dropping", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success || res.NewStatus != state.StatusResolved {
		t.Fatalf("result = %+v, want resolved success", res)
	}
	if res.Outcome != "connection_remediated" {
		t.Fatalf("Outcome = %q", res.Outcome)
	}
}

func TestTier2EscalatesWhenDiagnosticsDown(t *testing.T) {
	gw := newGateway()
	failCapability(gw, "run_diagnostic_test")
	w := NewTier2Worker(gw)
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "my connection keeps dropping", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.RequiresEscalation {
		t.Fatal("expected escalation when diagnostics are unavailable")
	}
}

func TestTier3CreatesTicketAndResolves(t *testing.T) {
	w := NewTier3Worker(newGateway())
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "recurring outage across my sites", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	var ticketed bool
	for _, tool := range res.ToolsUsed {
		if tool == "create_ticket" {
			ticketed = true
		}
	}
	if !ticketed {
		t.Fatal("expected a ticket to be created for a fresh conversation")
	}
}

func TestBillingRefund(t *testing.T) {
	w := NewBillingWorker(newGateway())
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "I was charged twice, I want a refund", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success || res.Outcome != "refund_issued" {
		t.Fatalf("result = %+v, want refund_issued success", res)
	}
}

func TestSalesUpgrade(t *testing.T) {
	w := NewSalesWorker(newGateway())
	c := state.New("s1", "c1", time.Now())

	res, err := w.Handle(context.Background(), "I want to upgrade my plan", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success || res.Outcome != "upgrade_quoted" {
		t.Fatalf("result = %+v, want upgrade_quoted success", res)
	}
}

func TestSupervisorResolvesWithAuthority(t *testing.T) {
	w := NewSupervisorWorker(newGateway())
	c := state.New("s1", "c1", time.Now())
	c.EscalationLevel = 1

	res, err := w.Handle(context.Background(), "nobody has fixed my issue", c)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !res.Success || res.NewStatus != state.StatusResolved {
		t.Fatalf("result = %+v, want supervisor resolution", res)
	}
}

func TestSupervisorHandsOffToHuman(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		mutate func(*state.Conversation)
	}{
		{"explicit demand", "I want to talk to a person, not a bot", func(c *state.Conversation) {}},
		{"deep escalation", "still broken", func(c *state.Conversation) { c.EscalationLevel = 2 }},
		{"frustrated platinum customer", "still broken", func(c *state.Conversation) {
			c.Customer = &state.CustomerProfile{ID: "p", Tier: state.TierPlatinum}
			c.Sentiment = state.SentimentFrustrated
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewSupervisorWorker(newGateway())
			c := state.New("s1", "c1", time.Now())
			tc.mutate(c)
			res, err := w.Handle(context.Background(), tc.text, c)
			if err != nil {
				t.Fatalf("Handle error: %v", err)
			}
			if !res.RequiresHuman {
				t.Fatalf("result = %+v, want RequiresHuman", res)
			}
			if res.Success {
				t.Fatal("handoff decision must not mark the turn resolved")
			}
		})
	}
}
