package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/observability"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/reliability"
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrPermissionDenied  = errors.New("capability permission denied")
	ErrRateLimited       = errors.New("capability rate limit exceeded")
)

// ExhaustedError reports that a capability failed on every configured attempt.
type ExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("capability %s exhausted after %d attempt(s): %v", e.Name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Capability describes one named external operation.
type Capability struct {
	Name                string
	Description         string
	RequiredPermissions []string
	Timeout             time.Duration
	RetryAttempts       int
	RatePerMinute       int // 0 means unlimited
}

// Executor performs the actual capability call.
type Executor func(ctx context.Context, params map[string]any) (map[string]any, error)

// CallerContext identifies who is invoking a capability and with which
// permission set.
type CallerContext struct {
	Caller         string
	ConversationID string
	Permissions    []string
}

// Stats is a read-only snapshot of per-capability execution counters.
type Stats struct {
	Total          int64         `json:"total_executions"`
	Successful     int64         `json:"successful_executions"`
	Failed         int64         `json:"failed_executions"`
	AverageLatency time.Duration `json:"average_latency"`
	LastExecution  time.Time     `json:"last_execution"`
}

// rateWindow is a per-capability fixed one-minute window counter. It is
// shared process-wide and uses atomics only, per the gateway contract.
type rateWindow struct {
	window atomic.Int64
	count  atomic.Int64
}

func (w *rateWindow) take(now time.Time, limit int) bool {
	if limit <= 0 {
		return true
	}
	minute := now.Unix() / 60
	if cur := w.window.Load(); cur != minute {
		if w.window.CompareAndSwap(cur, minute) {
			w.count.Store(0)
		}
	}
	return w.count.Add(1) <= int64(limit)
}

type capEntry struct {
	cap  Capability
	exec Executor
	rate *rateWindow
}

// Registry is the capability execution gateway: permissioned, rate-limited,
// retried invocation of named external capabilities.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*capEntry
	stats   map[string]*Stats
	metrics *observability.Metrics

	backoffBase time.Duration
	backoffCap  time.Duration
	now         func() time.Time
	wait        func(context.Context, time.Duration) error
}

func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[string]*capEntry),
		stats:       make(map[string]*Stats),
		backoffBase: time.Second,
		backoffCap:  30 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		wait:        reliability.Wait,
	}
}

// SetMetrics attaches Prometheus counters for execution outcomes.
func (r *Registry) SetMetrics(m *observability.Metrics) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// Register adds or replaces a capability and its executor.
func (r *Registry) Register(cap Capability, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cap.Name] = &capEntry{cap: cap, exec: exec, rate: &rateWindow{}}
	if _, ok := r.stats[cap.Name]; !ok {
		r.stats[cap.Name] = &Stats{}
	}
}

func (r *Registry) lookup(name string) (*capEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Execute runs a capability on behalf of caller. Permission and rate-limit
// failures are reported without retry; execution failures are retried with
// capped exponential backoff up to the capability's configured attempts.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, caller CallerContext) (map[string]any, error) {
	entry, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if missing := missingPermissions(entry.cap.RequiredPermissions, caller.Permissions); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s requires %v", ErrPermissionDenied, name, missing)
	}
	if !entry.rate.take(r.now(), entry.cap.RatePerMinute) {
		return nil, fmt.Errorf("%w: %s (%d/min)", ErrRateLimited, name, entry.cap.RatePerMinute)
	}

	attempts := entry.cap.RetryAttempts + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := r.wait(ctx, reliability.ExponentialBackoff(attempt, r.backoffBase, r.backoffCap)); err != nil {
				lastErr = err
				break
			}
		}
		start := r.now()
		result, err := r.runOnce(ctx, entry, params)
		if err == nil {
			r.recordResult(name, true, r.now().Sub(start))
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	r.recordResult(name, false, 0)
	return nil, &ExhaustedError{Name: name, Attempts: attempts, Last: lastErr}
}

func (r *Registry) runOnce(ctx context.Context, entry *capEntry, params map[string]any) (map[string]any, error) {
	if entry.cap.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.cap.Timeout)
		defer cancel()
	}
	return entry.exec(ctx, params)
}

func (r *Registry) recordResult(name string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		s = &Stats{}
		r.stats[name] = s
	}
	s.Total++
	if success {
		s.Successful++
		// Running average over successful executions only.
		prev := s.AverageLatency
		s.AverageLatency = prev + (latency-prev)/time.Duration(s.Successful)
	} else {
		s.Failed++
	}
	s.LastExecution = r.now()

	if r.metrics != nil {
		outcome := "success"
		if !success {
			outcome = "failure"
		}
		r.metrics.CapabilityExecutions.WithLabelValues(name, outcome).Inc()
	}
}

// StatsFor returns the execution counters for one capability.
func (r *Registry) StatsFor(name string) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[name]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Snapshot returns counters for every registered capability.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.stats))
	for name, s := range r.stats {
		out[name] = *s
	}
	return out
}

func missingPermissions(required, held []string) []string {
	if len(required) == 0 {
		return nil
	}
	have := make(map[string]bool, len(held))
	for _, p := range held {
		have[p] = true
	}
	var missing []string
	for _, p := range required {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	return missing
}
