package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Governor paces outgoing provider calls. The delay before each call grows
// with the number of calls made in the trailing window, and a rate-limit
// signal from the provider adds a one-off cool-down that every caller
// honours.
type Governor struct {
	cfg   GovernorConfig
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu            sync.Mutex
	calls         []time.Time
	cooldownUntil time.Time
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GovernorOption {
	return func(g *Governor) {
		g.now = now
	}
}

// WithSleep overrides how the Governor waits.
func WithSleep(fn func(context.Context, time.Duration) error) GovernorOption {
	return func(g *Governor) {
		g.sleep = fn
	}
}

// NewGovernor creates a Governor.
func NewGovernor(cfg GovernorConfig, opts ...GovernorOption) *Governor {
	g := &Governor{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Delay returns the pause applied when n calls were made in the trailing window.
func (g *Governor) Delay(n int) time.Duration {
	return time.Duration(float64(g.cfg.BaseDelay) * multiplier(n))
}

func multiplier(n int) float64 {
	switch {
	case n < 10:
		return 1
	case n < 20:
		return 1.5
	case n <= 30:
		return 2
	default:
		return 3
	}
}

// Throttle blocks until the next call may be made and records it. Returns
// the context error if ctx ends first; the call is not recorded then.
func (g *Governor) Throttle(ctx context.Context) error {
	g.mu.Lock()
	now := g.now()
	g.prune(now)
	wait := g.Delay(len(g.calls))
	if g.cooldownUntil.After(now) {
		wait += g.cooldownUntil.Sub(now)
	}
	g.mu.Unlock()

	if err := g.sleep(ctx, wait); err != nil {
		return err
	}

	g.mu.Lock()
	g.calls = append(g.calls, g.now())
	g.mu.Unlock()
	return nil
}

// RateLimited records a provider rate-limit signal. The next Throttle from
// any caller waits an additional cool-down.
func (g *Governor) RateLimited() {
	g.mu.Lock()
	defer g.mu.Unlock()

	until := g.now().Add(g.cfg.Cooldown)
	if until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
	zap.L().Warn("governor: provider rate limit, cooling down",
		zap.Duration("cooldown", g.cfg.Cooldown),
	)
}

// Recent returns the number of calls recorded in the trailing window.
func (g *Governor) Recent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.calls)
}

// prune drops timestamps older than the window. Caller holds g.mu.
func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(g.calls) && !g.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.calls = append(g.calls[:0], g.calls[i:]...)
	}
}

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
