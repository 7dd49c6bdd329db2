package routing

import (
	"strings"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// intentCategories folds raw classifier intents into the broad categories the
// weight table is keyed by. Unknown intents fall through to "faq".
var intentCategories = map[string]string{
	"account_access":    "account_access",
	"login_issue":       "account_access",
	"password_reset":    "password_reset",
	"forgot_password":   "password_reset",
	"service_status":    "technical",
	"technical_support": "technical",
	"connection_issue":  "connection_issue",
	"slow_performance":  "technical",
	"system_error":      "system_error",
	"billing_inquiry":   "billing",
	"payment_issue":     "payment_issue",
	"refund_request":    "refund_request",
	"invoice_question":  "billing",
	"product_inquiry":   "product_inquiry",
	"pricing_question":  "sales",
	"sales_inquiry":     "sales",
	"upgrade_request":   "upgrade_request",
	"downgrade_request": "sales",
	"complaint":         "complaint",
	"dissatisfaction":   "complaint",
	"escalation":        "escalation",
	"speak_to_manager":  "escalation",
	"cancellation":      "cancellation",
	"terminate_service": "cancellation",
	"general_inquiry":   "faq",
	"how_to":            "faq",
}

// intentWeights is the static partial-credit table: category -> worker -> base
// weight. Loaded once, never mutated at runtime.
var intentWeights = map[string]map[state.WorkerType]float64{
	"faq":              {state.WorkerTier1: 0.9},
	"account_access":   {state.WorkerTier1: 0.8},
	"password_reset":   {state.WorkerTier1: 0.9},
	"technical":        {state.WorkerTier2: 0.8, state.WorkerTier1: 0.3},
	"connection_issue": {state.WorkerTier2: 0.9},
	"system_error":     {state.WorkerTier2: 0.8, state.WorkerTier3: 0.6},
	"billing":          {state.WorkerBilling: 0.9, state.WorkerTier1: 0.2},
	"payment_issue":    {state.WorkerBilling: 0.9},
	"refund_request":   {state.WorkerBilling: 0.8},
	"sales":            {state.WorkerSales: 0.9, state.WorkerTier1: 0.1},
	"product_inquiry":  {state.WorkerSales: 0.8},
	"upgrade_request":  {state.WorkerSales: 0.9},
	"complaint":        {state.WorkerSupervisor: 0.7, state.WorkerTier3: 0.5},
	"escalation":       {state.WorkerSupervisor: 1.0},
	"cancellation":     {state.WorkerSupervisor: 0.6, state.WorkerTier3: 0.4},
}

// CategorizeIntent maps a raw intent label to its routing category.
func CategorizeIntent(intent string) string {
	intent = strings.ToLower(strings.TrimSpace(intent))
	if cat, ok := intentCategories[intent]; ok {
		return cat
	}
	if _, ok := intentWeights[intent]; ok {
		return intent
	}
	return "faq"
}

// EscalationIntent reports intents that bypass routing and go straight to the
// supervisor from intent classification.
func EscalationIntent(intent string) bool {
	switch strings.ToLower(strings.TrimSpace(intent)) {
	case "complaint", "escalation", "emergency":
		return true
	default:
		return false
	}
}

// OptimalWorker returns the worker type with the highest base weight for an
// intent, in tier order on ties. Used by the transfer trigger.
func OptimalWorker(intent string) state.WorkerType {
	weights := intentWeights[CategorizeIntent(intent)]
	best := state.WorkerTier1
	bestW := 0.0
	for _, w := range state.AllWorkerTypes() {
		if weights[w] > bestW {
			best = w
			bestW = weights[w]
		}
	}
	return best
}
