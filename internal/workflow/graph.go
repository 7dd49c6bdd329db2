// Package workflow drives conversations through the directed node graph:
// classification, routing, worker execution, escalation, quality control, and
// the terminal handoff/timeout/error paths.
package workflow

import (
	"fmt"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
)

// Node names a vertex in the workflow graph.
type Node string

const (
	NodeCustomerEntry        Node = "customer_entry"
	NodeIntentClassification Node = "intent_classification"
	NodeClarificationNeeded  Node = "clarification_needed"
	NodeSmartRouting         Node = "smart_routing"
	NodeTier1                Node = "tier1_support"
	NodeTier2                Node = "tier2_technical"
	NodeTier3                Node = "tier3_expert"
	NodeSales                Node = "sales"
	NodeBilling              Node = "billing"
	NodeSupervisor           Node = "supervisor"
	NodeEscalationHandler    Node = "escalation_handler"
	NodeQualityCheck         Node = "quality_check"
	NodeHumanHandoff         Node = "human_handoff"
	NodeConversationTimeout  Node = "conversation_timeout"
	NodeErrorHandler         Node = "error_handler"

	// NodeEnd ends the turn on a terminal state; NodeSuspend parks the
	// conversation until the next customer message arrives.
	NodeEnd     Node = "end"
	NodeSuspend Node = "suspend"
)

// WorkerNode maps a routable worker type to its graph node.
func WorkerNode(w state.WorkerType) Node {
	return Node(string(w))
}

func isWorkerNode(n Node) bool {
	switch n {
	case NodeTier1, NodeTier2, NodeTier3, NodeSales, NodeBilling, NodeSupervisor:
		return true
	}
	return false
}

var workerSuccessors = []Node{
	NodeQualityCheck, NodeHumanHandoff, NodeEscalationHandler,
	NodeSmartRouting, NodeErrorHandler, NodeSuspend,
}

// edges declares every legal transition. The engine's step functions must
// only return targets listed here; Validate enforces shape at startup.
var edges = map[Node][]Node{
	NodeCustomerEntry:        {NodeIntentClassification},
	NodeIntentClassification: {NodeSmartRouting, NodeClarificationNeeded, NodeSupervisor, NodeErrorHandler},
	NodeClarificationNeeded:  {NodeSupervisor, NodeConversationTimeout, NodeIntentClassification, NodeSuspend},
	NodeSmartRouting:         {NodeTier1, NodeTier2, NodeTier3, NodeSales, NodeBilling, NodeSupervisor},
	NodeTier1:                workerSuccessors,
	NodeTier2:                workerSuccessors,
	NodeTier3:                workerSuccessors,
	NodeSales:                workerSuccessors,
	NodeBilling:              workerSuccessors,
	NodeSupervisor:           {NodeHumanHandoff, NodeQualityCheck, NodeEscalationHandler, NodeSmartRouting, NodeErrorHandler, NodeSuspend},
	NodeEscalationHandler:    {NodeSupervisor, NodeSmartRouting, NodeHumanHandoff},
	NodeQualityCheck:         {NodeEnd, NodeSmartRouting, NodeSupervisor},
	NodeHumanHandoff:         {NodeEnd},
	NodeConversationTimeout:  {NodeEnd},
	NodeErrorHandler:         {NodeEnd},
}

// EntryNode is where every inbound turn starts.
const EntryNode = NodeCustomerEntry

// Terminal reports whether a node ends the turn.
func (n Node) Terminal() bool {
	return n == NodeEnd || n == NodeSuspend
}

func allowedTransition(from, to Node) bool {
	for _, t := range edges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Validate checks the graph is well formed: the entry reaches every node and
// every node reaches a terminal.
func Validate() error {
	reached := map[Node]bool{EntryNode: true}
	frontier := []Node{EntryNode}
	for len(frontier) > 0 {
		n := frontier[0]
		frontier = frontier[1:]
		for _, next := range edges[n] {
			if !reached[next] {
				reached[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	for n := range edges {
		if !reached[n] {
			return fmt.Errorf("workflow: node %s unreachable from %s", n, EntryNode)
		}
		if !reachesTerminal(n, map[Node]bool{}) {
			return fmt.Errorf("workflow: node %s cannot reach a terminal", n)
		}
	}
	return nil
}

func reachesTerminal(n Node, seen map[Node]bool) bool {
	if n.Terminal() {
		return true
	}
	if seen[n] {
		return false
	}
	seen[n] = true
	for _, next := range edges[n] {
		if reachesTerminal(next, seen) {
			return true
		}
	}
	return false
}
