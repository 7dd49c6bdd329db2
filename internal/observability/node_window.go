package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type NodeStats struct {
	Node        string  `json:"node"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type NodeIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type NodeWindowSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	WindowSize  int             `json:"window_size"`
	Nodes       []NodeStats     `json:"nodes"`
	Indicators  []NodeIndicator `json:"indicators,omitempty"`
}

// NodeWindow keeps a fixed-size rolling window of per-node execution
// latencies plus named incident counters. It backs the perf debug endpoint.
type NodeWindow struct {
	mu         sync.RWMutex
	maxSamples int
	nodes      map[string]*nodeBuffer
	indicators map[string]int
}

type nodeBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewNodeWindow(maxSamples int) *NodeWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &NodeWindow{
		maxSamples: maxSamples,
		nodes:      make(map[string]*nodeBuffer),
		indicators: make(map[string]int),
	}
}

func (w *NodeWindow) Observe(node string, ms float64) {
	if w == nil || node == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.nodes[node]
	if !ok {
		buf = &nodeBuffer{
			values: make([]float64, w.maxSamples),
		}
		w.nodes[node] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *NodeWindow) Snapshot() NodeWindowSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	nodes := make([]NodeStats, 0, len(w.nodes))
	keys := make([]string, 0, len(w.nodes))
	for node := range w.nodes {
		keys = append(keys, node)
	}
	sort.Strings(keys)

	for _, node := range keys {
		buf := w.nodes[node]
		if buf == nil {
			continue
		}
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		nodes = append(nodes, NodeStats{
			Node:        node,
			Samples:     n,
			LastMS:      round2(buf.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: nodeTargetP95MS(node),
		})
	}

	indicators := make([]NodeIndicator, 0, len(w.indicators))
	indicatorKeys := make([]string, 0, len(w.indicators))
	for name := range w.indicators {
		indicatorKeys = append(indicatorKeys, name)
	}
	sort.Strings(indicatorKeys)
	for _, name := range indicatorKeys {
		count := w.indicators[name]
		if count <= 0 {
			continue
		}
		indicators = append(indicators, NodeIndicator{
			Name:  name,
			Count: count,
		})
	}

	return NodeWindowSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Nodes:       nodes,
		Indicators:  indicators,
	}
}

func (w *NodeWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *NodeWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nodes = make(map[string]*nodeBuffer)
	w.indicators = make(map[string]int)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Capability-backed nodes get looser targets than pure transition nodes.
func nodeTargetP95MS(node string) float64 {
	switch node {
	case "intent_classification":
		return 50
	case "smart_routing", "escalation_handler", "quality_check":
		return 10
	case "tier1_support", "tier2_technical", "tier3_expert", "sales", "billing", "supervisor":
		return 1500
	case "turn_total":
		return 3000
	default:
		return 0
	}
}
