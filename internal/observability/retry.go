package observability

import (
	"context"
	"math/rand"
	"time"

	"github.com/codeprism-dev/codeprism/internal/errors"
)

// Category is a retry policy bucket (spec.md §4.13: "Config per error
// category: connection, request, validation").
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryRequest     Category = "request"
	CategoryValidation  Category = "validation" // no retry
)

// Policy is one category's exponential-backoff-with-jitter
// configuration, generalized from the pack's
// internal/agent/resilience.go RetryPolicy with an added JitterFactor
// (spec.md §4.13: "Jitter is proportional (±jitter_factor × delay)",
// a refinement the pack's RetryPolicy doesn't itself have).
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	Multiplier    float64
	MaxDelay      time.Duration
	JitterFactor  float64
}

// policies holds spec.md §4.13's exact per-category defaults.
var policies = map[Category]Policy{
	CategoryConnection: {MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Second, JitterFactor: 0.2},
	CategoryRequest:    {MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, Multiplier: 1.5, MaxDelay: 2 * time.Second, JitterFactor: 0.2},
	CategoryValidation: {MaxAttempts: 1},
}

// PolicyFor returns category's configured Policy.
func PolicyFor(category Category) Policy {
	return policies[category]
}

// CategoryFor maps a CodePrism error kind onto a retry category.
// errors.IsRetryable's collapsed taxonomy (Io, Resource) maps onto
// spec.md §4.13's finer Connection/Request split: Io failures are
// transport-like (Connection), Resource exhaustion is request-shaped
// backpressure (Request); every other kind is non-retryable
// (Validation's "no retry" policy covers protocol/configuration/
// validation alike, per spec.md §4.13).
func CategoryFor(kind errors.Kind) Category {
	switch kind {
	case errors.KindIo:
		return CategoryConnection
	case errors.KindResource:
		return CategoryRequest
	default:
		return CategoryValidation
	}
}

// delay computes the backoff for attempt (0-based), with proportional
// jitter applied.
func (p Policy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return jittered(p.InitialDelay, p.JitterFactor)
	}
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d > float64(p.MaxDelay) && p.MaxDelay > 0 {
			d = float64(p.MaxDelay)
			break
		}
	}
	return jittered(time.Duration(d), p.JitterFactor)
}

func jittered(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * factor
	offset := (rand.Float64()*2 - 1) * spread // uniform in [-spread, +spread]
	result := float64(d) + offset
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}

// Do runs fn, retrying under category's policy while err is retryable
// and attempts remain, or until ctx is cancelled. Non-retryable errors
// (spec.md §4.13: protocol violations, configuration, validation)
// bypass retry and return immediately.
func Do(ctx context.Context, category Category, fn func(context.Context) error) error {
	policy := PolicyFor(category)
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.IsRetryable(err) || attempt == policy.MaxAttempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}
	return lastErr
}
