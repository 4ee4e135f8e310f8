package observability

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's three-state machine (spec.md
// §4.13), generalized from the pack's internal/agent/resilience.go
// CircuitBreakerState.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Defaults for a CircuitBreaker per spec.md §4.13: N=5 consecutive
// failures opens it, M=3 successes in half-open closes it, a 60s
// timeout before probing, and at most 2 calls admitted per half-open
// probe window.
const (
	DefaultFailureThreshold  = 5
	DefaultSuccessThreshold  = 3
	DefaultOpenTimeout       = 60 * time.Second
	DefaultHalfOpenMaxCalls  = 2
)

// ErrBreakerOpen is returned by Call when the breaker is rejecting
// calls for dependency/operation name.
type ErrBreakerOpen struct{ Name string }

func (e ErrBreakerOpen) Error() string { return fmt.Sprintf("circuit breaker open for %q", e.Name) }

// CircuitBreaker guards one external dependency or operation,
// rejecting calls once it has seen too many consecutive failures,
// then cautiously probing recovery (spec.md §4.13).
type CircuitBreaker struct {
	name string
	mu   sync.Mutex

	state           BreakerState
	failureCount    int
	successCount    int
	halfOpenCalls   int
	lastFailureTime time.Time

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	halfOpenMaxCalls int
}

// NewCircuitBreaker builds a breaker with spec.md §4.13's defaults.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		state:            BreakerClosed,
		failureThreshold: DefaultFailureThreshold,
		successThreshold: DefaultSuccessThreshold,
		timeout:          DefaultOpenTimeout,
		halfOpenMaxCalls: DefaultHalfOpenMaxCalls,
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call should proceed, transitioning Open to
// HalfOpen once the timeout has elapsed. While HalfOpen it admits at
// most halfOpenMaxCalls concurrent probes at a time (spec.md §4.13);
// each probe's outcome (RecordSuccess/RecordFailure) frees its slot,
// so halfOpenMaxCalls bounds in-flight probes, not the total number
// of successes needed to close (successThreshold, separately).
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.lastFailureTime) < cb.timeout {
			return false
		}
		cb.state = BreakerHalfOpen
		cb.successCount = 0
		cb.halfOpenCalls = 0
	case BreakerHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
	}
	if cb.state == BreakerHalfOpen {
		cb.halfOpenCalls++
	}
	return true
}

// RecordSuccess reports a successful call, possibly closing a
// HalfOpen breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	if cb.state == BreakerHalfOpen {
		cb.successCount++
		if cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
		if cb.successCount >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.successCount = 0
		}
	}
}

// RecordFailure reports a failed call. Any failure while HalfOpen
// reopens the breaker immediately; enough consecutive failures while
// Closed opens it.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailureTime = time.Now()
	cb.successCount = 0

	if cb.state == BreakerHalfOpen {
		cb.state = BreakerOpen
		cb.halfOpenCalls = 0
		return
	}
	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.state = BreakerOpen
	}
}

// Call runs fn through the breaker: rejecting immediately if it isn't
// admitting calls, else recording the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.Allow() {
		return ErrBreakerOpen{Name: cb.name}
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// Registry tracks one CircuitBreaker per dependency/operation name,
// creating them lazily on first use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty breaker Registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the named breaker, creating it with defaults if absent.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(name)
		r.breakers[name] = cb
	}
	return cb
}

// States returns every tracked breaker's current state, for the
// health rollup.
func (r *Registry) States() map[string]BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]BreakerState, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State()
	}
	return out
}
