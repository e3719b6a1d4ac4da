package engine

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/boardsync/internal/rules"
)

// RetryPolicy bounds retries of one platform call.
type RetryPolicy struct {
	// MaxAttempts counts every attempt, the first included.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryPolicyFrom reads the policy from technical settings.
func RetryPolicyFrom(t rules.Technical) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  max(1, t.MaxRetries),
		InitialDelay: t.InitialRetryDelay,
		MaxDelay:     t.MaxRetryDelay,
	}
}

// NewBackOff returns the delay schedule: InitialDelay doubling up to
// MaxDelay, without jitter so delays are reproducible.
func (p RetryPolicy) NewBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxDelay,
	}
	b.Reset()
	return b
}

// Delays returns the waits between attempts, for logs and tests.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.NewBackOff()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}
