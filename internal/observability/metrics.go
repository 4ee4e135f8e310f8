// Package observability implements spec.md §4.13: per-operation
// metrics, a health rollup, per-dependency circuit breakers, and
// categorized retry with jittered backoff, grounded on the pack's
// internal/agent/resilience.go resilience primitives and the
// teacher's internal/metrics/codebase_stats.go snapshot shape.
package observability

import (
	"sync"
	"time"

	"github.com/codeprism-dev/codeprism/internal/errors"
)

// latencyBucketsMS are the upper bounds (inclusive, milliseconds) of
// the latency histogram spec.md §4.13 asks every operation to expose.
var latencyBucketsMS = []float64{1, 5, 10, 50, 100, 500, 1000, 5000}

type operationMetrics struct {
	success    int64
	failure    int64
	buckets    []int64 // parallel to latencyBucketsMS, plus one +Inf overflow bucket
	totalNanos int64
}

func newOperationMetrics() *operationMetrics {
	return &operationMetrics{buckets: make([]int64, len(latencyBucketsMS)+1)}
}

func (m *operationMetrics) record(d time.Duration, ok bool) {
	if ok {
		m.success++
	} else {
		m.failure++
	}
	m.totalNanos += int64(d)
	ms := float64(d) / float64(time.Millisecond)
	for i, upper := range latencyBucketsMS {
		if ms <= upper {
			m.buckets[i]++
			return
		}
	}
	m.buckets[len(m.buckets)-1]++
}

func (m *operationMetrics) errorRate() float64 {
	total := m.success + m.failure
	if total == 0 {
		return 0
	}
	return float64(m.failure) / float64(total)
}

// OperationSnapshot is one operation's counters at the moment Snapshot
// was taken.
type OperationSnapshot struct {
	Success          int64
	Failure          int64
	ErrorRate        float64
	LatencyHistogram map[string]int64 // bucket upper bound ("5ms", "1s", ..., "+Inf") -> count
}

// Snapshot is metrics.md §4.13's "snapshot structure for tool
// surfacing": a point-in-time read of every counter, safe to hold
// after Metrics keeps mutating.
type Snapshot struct {
	Uptime           time.Duration
	Operations       map[string]OperationSnapshot
	ErrorsByKind     map[string]int64
	ErrorsBySeverity map[string]int64
	ResourceGauges   map[string]float64
}

// Metrics accumulates per-operation success/failure counts, a latency
// histogram, error counts by kind and severity, and resource-usage
// gauges (spec.md §4.13). All methods are safe for concurrent use.
type Metrics struct {
	mu         sync.Mutex
	startedAt  time.Time
	operations map[string]*operationMetrics
	byKind     map[errors.Kind]int64
	bySeverity map[errors.Severity]int64
	gauges     map[string]float64
}

// New creates an empty Metrics whose uptime clock starts now.
func New() *Metrics {
	return &Metrics{
		startedAt:  time.Now(),
		operations: make(map[string]*operationMetrics),
		byKind:     make(map[errors.Kind]int64),
		bySeverity: make(map[errors.Severity]int64),
		gauges:     make(map[string]float64),
	}
}

func (m *Metrics) operationLocked(op string) *operationMetrics {
	om, ok := m.operations[op]
	if !ok {
		om = newOperationMetrics()
		m.operations[op] = om
	}
	return om
}

// RecordSuccess records one successful call to op, taking d to
// complete.
func (m *Metrics) RecordSuccess(op string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationLocked(op).record(d, true)
}

// RecordFailure records one failed call to op, taking d to complete,
// and tallies err's kind and severity if err is a *errors.Error.
func (m *Metrics) RecordFailure(op string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationLocked(op).record(d, false)
	if cpErr, ok := err.(*errors.Error); ok {
		m.byKind[cpErr.Kind]++
		m.bySeverity[cpErr.Severity]++
	}
}

// SetResourceGauge sets a named resource-usage gauge to value (spec.md
// §4.13's "resource-usage gauges"), e.g. sandbox CPU/memory usage.
func (m *Metrics) SetResourceGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

func bucketLabel(i int) string {
	if i == len(latencyBucketsMS) {
		return "+Inf"
	}
	return time.Duration(latencyBucketsMS[i] * float64(time.Millisecond)).String()
}

// Snapshot returns a point-in-time copy of every counter.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		hist := make(map[string]int64, len(om.buckets))
		for i, c := range om.buckets {
			hist[bucketLabel(i)] = c
		}
		ops[name] = OperationSnapshot{
			Success:          om.success,
			Failure:          om.failure,
			ErrorRate:        om.errorRate(),
			LatencyHistogram: hist,
		}
	}

	byKind := make(map[string]int64, len(m.byKind))
	for k, v := range m.byKind {
		byKind[string(k)] = v
	}
	bySeverity := make(map[string]int64, len(m.bySeverity))
	for k, v := range m.bySeverity {
		bySeverity[string(k)] = v
	}
	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}

	return Snapshot{
		Uptime:           time.Since(m.startedAt),
		Operations:       ops,
		ErrorsByKind:     byKind,
		ErrorsBySeverity: bySeverity,
		ResourceGauges:   gauges,
	}
}
