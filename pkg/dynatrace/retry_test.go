package dynatrace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(-1))
}

func TestRetryPolicyDecide(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Second}
	reset := &TransportError{Kind: KindConnectionReset, Err: errors.New("reset")}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    RetryDecision
	}{
		{"success", nil, 0, RetryDecision{State: StateSuccess}},
		{"first transport failure", reset, 0, RetryDecision{State: StateRetryScheduled, ShouldRetry: true, Delay: time.Second}},
		{"second transport failure", reset, 1, RetryDecision{State: StateRetryScheduled, ShouldRetry: true, Delay: 2 * time.Second}},
		{"budget spent", reset, 2, RetryDecision{State: StateExhausted}},
		{"http status", &HTTPStatusError{StatusCode: 503}, 0, RetryDecision{State: StateFailed}},
		{"canceled", &TransportError{Kind: KindCanceled, Err: context.Canceled}, 0, RetryDecision{State: StateFailed}},
		{"unclassified transport", &TransportError{Kind: KindOther, Err: errors.New("x509")}, 0, RetryDecision{State: StateFailed}},
		{"plain error", errors.New("boom"), 0, RetryDecision{State: StateFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Decide(tt.err, tt.attempt)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.State != StateRetryScheduled, got.State.Terminal())
		})
	}
}

func TestTransportErrorRetryable(t *testing.T) {
	for kind, want := range map[TransportErrorKind]bool{
		KindDNS:               true,
		KindConnectionRefused: true,
		KindConnectionReset:   true,
		KindTimeout:           true,
		KindCanceled:          false,
		KindOther:             false,
	} {
		e := &TransportError{Kind: kind}
		assert.Equal(t, want, e.Retryable(), string(kind))
	}
}

func TestRetryStateString(t *testing.T) {
	assert.Equal(t, "RETRY_SCHEDULED", StateRetryScheduled.String())
	assert.Equal(t, "EXHAUSTED", StateExhausted.String())
	assert.False(t, StateAttempting.Terminal())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
