package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the production SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimitSource reports the remaining request budget.
type RateLimitSource interface {
	RateLimitRemaining(ctx context.Context) (platform.RateLimit, error)
}

// Throttle pauses all dispatch while the platform's remaining request
// budget is below a floor.
//
// Each write calls Wait first. When the budget is low, Wait sleeps until
// one second past the reported reset. The mutex is held while sleeping so
// that every concurrent writer waits for the same window instead of each
// spending the last requests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Throttle struct {
	mu           sync.Mutex
	source       RateLimitSource
	minRemaining int
	now          func() time.Time
	sleep        SleepFunc
	logger       *slog.Logger
	pauses       int
}

// NewThrottle creates a throttle with the given floor.
func NewThrottle(source RateLimitSource, minRemaining int, now func() time.Time, sleep SleepFunc, logger *slog.Logger) *Throttle {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttle{
		source:       source,
		minRemaining: minRemaining,
		now:          now,
		sleep:        sleep,
		logger:       logger,
	}
}

// Wait returns once the budget allows another request. A failure to read
// the budget is not an error: the request proceeds and the platform's own
// 403/429 handling takes over.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rl, err := t.source.RateLimitRemaining(ctx)
	if err != nil {
		t.logger.Debug("rate limit unavailable", "error", err)
		return nil
	}
	if rl.Remaining >= t.minRemaining {
		return nil
	}
	d := rl.Reset.Add(time.Second).Sub(t.now())
	if d <= 0 {
		return nil
	}

	t.pauses++
	t.logger.Warn("rate limit low, pausing",
		"remaining", rl.Remaining,
		"resume_in", d,
		"reason", ir.ReasonRateLimited)
	return t.sleep(ctx, d)
}

// Pauses returns how many times Wait slept.
func (t *Throttle) Pauses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauses
}
