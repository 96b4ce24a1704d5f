package dynatrace

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// RetryState is a state of the per-request retry state machine.
type RetryState int

const (
	StateAttempting RetryState = iota
	StateRetryScheduled
	StateSuccess
	StateExhausted
	StateFailed
)

func (s RetryState) String() string {
	switch s {
	case StateAttempting:
		return "ATTEMPTING"
	case StateRetryScheduled:
		return "RETRY_SCHEDULED"
	case StateSuccess:
		return "SUCCESS"
	case StateExhausted:
		return "EXHAUSTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions follow s.
func (s RetryState) Terminal() bool {
	return s == StateSuccess || s == StateExhausted || s == StateFailed
}

// RetryDecision is the outcome of classifying one attempt.
type RetryDecision struct {
	State       RetryState
	ShouldRetry bool
	Delay       time.Duration
}

// RetryPolicy retries transport failures with unjittered exponential backoff.
// HTTP responses, whatever their status, are never retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles on every retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay returns 2^attempt * BaseDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}

// Decide classifies the result of attempt number attempt (zero based).
func (p RetryPolicy) Decide(err error, attempt int) RetryDecision {
	if err == nil {
		return RetryDecision{State: StateSuccess}
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) || !transportErr.Retryable() {
		return RetryDecision{State: StateFailed}
	}

	if attempt >= p.MaxRetries {
		return RetryDecision{State: StateExhausted}
	}
	return RetryDecision{
		State:       StateRetryScheduled,
		ShouldRetry: true,
		Delay:       p.Delay(attempt),
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
