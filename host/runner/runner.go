// Package runner drives a scheduler at a fixed period.
package runner

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"rover/core"
)

// DefaultPeriod is the loop period when none is configured.
const DefaultPeriod = 20 * time.Millisecond

// Runner ticks a scheduler until its context ends.
type Runner struct {
	sched  *core.Scheduler
	period time.Duration
	ticks  atomic.Uint64

	// OnTick, when set, runs right before each scheduler tick. Button
	// polls and sensor updates belong here so commands see fresh
	// values.
	OnTick func()
}

// New builds a runner for the scheduler. A non-positive period falls
// back to DefaultPeriod.
func New(sched *core.Scheduler, period time.Duration) *Runner {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Runner{sched: sched, period: period}
}

// Period returns the loop period.
func (r *Runner) Period() time.Duration {
	return r.period
}

// Ticks returns how many ticks have completed.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// Run ticks the scheduler until ctx is canceled. The first tick fires
// one period after the call.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	start := time.Now()
	if r.OnTick != nil {
		r.OnTick()
	}
	r.sched.Run()
	r.ticks.Add(1)
	if elapsed := time.Since(start); elapsed > r.period {
		slog.Warn("tick overran the loop period", "elapsed", elapsed, "period", r.period)
	}
}
