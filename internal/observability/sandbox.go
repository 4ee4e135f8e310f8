package observability

import "sync"

// Resource names for sandbox budget accounting (SPEC_FULL.md §5's
// supplemented "script sandbox resource accounting" feature: spec.md
// §5 names the limit category without naming a surface for it; no
// scripting engine itself is in scope, only tracking the budgets a
// future one would consume).
const (
	ResourceCPUSeconds  = "sandbox_cpu_seconds"
	ResourceMemoryBytes = "sandbox_memory_bytes"
	ResourceFileHandles = "sandbox_file_handles"
	ResourceDiskBytes   = "sandbox_disk_bytes"
)

// Budget caps the allowed consumption of each sandbox resource.
type Budget struct {
	CPUSeconds  float64
	MemoryBytes float64
	FileHandles float64
	DiskBytes   float64
}

// DefaultBudget is a conservative starting allowance: 30 CPU-seconds,
// 512MiB, 64 file handles, 1GiB disk.
func DefaultBudget() Budget {
	return Budget{
		CPUSeconds:  30,
		MemoryBytes: 512 << 20,
		FileHandles: 64,
		DiskBytes:   1 << 30,
	}
}

// Sandbox tracks resource consumption against a Budget and mirrors
// its usage onto a Metrics instance's resource gauges, so Rollup sees
// it without the caller wiring anything else. It is read-only from
// the MCP surface — nothing in this package executes sandboxed code.
type Sandbox struct {
	mu      sync.Mutex
	budget  Budget
	used    Budget
	metrics *Metrics
}

// NewSandbox builds a Sandbox enforcing budget and mirroring usage
// into metrics (which may be nil to track usage without mirroring).
func NewSandbox(budget Budget, metrics *Metrics) *Sandbox {
	return &Sandbox{budget: budget, metrics: metrics}
}

// Consume adds to the tracked usage for one resource and reports
// whether the budget is still respected.
func (s *Sandbox) Consume(resource string, amount float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var used, limit *float64
	switch resource {
	case ResourceCPUSeconds:
		used, limit = &s.used.CPUSeconds, &s.budget.CPUSeconds
	case ResourceMemoryBytes:
		used, limit = &s.used.MemoryBytes, &s.budget.MemoryBytes
	case ResourceFileHandles:
		used, limit = &s.used.FileHandles, &s.budget.FileHandles
	case ResourceDiskBytes:
		used, limit = &s.used.DiskBytes, &s.budget.DiskBytes
	default:
		return true
	}
	*used += amount
	if s.metrics != nil {
		s.metrics.SetResourceGauge(resource, *used)
	}
	return *used <= *limit
}

// Thresholds returns the budget as a resource-name-to-limit map,
// suitable for passing straight to Rollup.
func (s *Sandbox) Thresholds() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]float64{
		ResourceCPUSeconds:  s.budget.CPUSeconds,
		ResourceMemoryBytes: s.budget.MemoryBytes,
		ResourceFileHandles: s.budget.FileHandles,
		ResourceDiskBytes:   s.budget.DiskBytes,
	}
}

// Reset zeroes tracked usage, e.g. between sandboxed invocations.
func (s *Sandbox) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = Budget{}
	if s.metrics == nil {
		return
	}
	for _, r := range []string{ResourceCPUSeconds, ResourceMemoryBytes, ResourceFileHandles, ResourceDiskBytes} {
		s.metrics.SetResourceGauge(r, 0)
	}
}
