package runner

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Result captures execution summary.
type Result struct {
	Total    int64 // iterations started
	Errors   int64 // iterations that failed while the test was running
	Aborted  int64 // iterations cut short because the test ended
	Duration time.Duration
}

// Runner coordinates virtual users with rate limiting.
type Runner struct {
	opt     Options
	plan    *patternPlan
	pacer   pacer
}

func New(opt Options) *Runner {
	opt.normalize()
	plan := compilePatternPlan(opt.LoadPatterns)
	return &Runner{opt: opt, plan: plan, pacer: newPacer(opt, plan)}
}

// PlannedDuration is the configured duration cap, or the length of the load
// pattern profile when no cap is set. Zero means the test runs until the
// iteration budget is spent or it is cancelled.
func (r *Runner) PlannedDuration() time.Duration {
	if r.opt.Duration > 0 {
		return r.opt.Duration
	}
	return r.plan.totalDuration()
}

// Run starts one goroutine per virtual user and hands out iteration
// permits until the iteration budget, the duration or ctx runs out.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var total, errs, aborted int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	if r.plan != nil {
		patternCtx, cancelPattern := context.WithCancel(ctx)
		ctx = patternCtx
		go r.plan.drive(patternCtx, r.pacer, cancelPattern)
	}

	permits := make(chan struct{}, r.opt.VUsers)

	// Scheduler: serializes rate limiting to avoid burst overshoot across users.
	go func() {
		defer close(permits)
		var issued int64
		for {
			if ctx.Err() != nil {
				return
			}
			if r.opt.Iterations > 0 && issued >= int64(r.opt.Iterations) {
				return
			}
			if r.pacer != nil {
				if err := r.pacer.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case permits <- struct{}{}:
				issued++
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.VUsers)
	for i := 0; i < r.opt.VUsers; i++ {
		id := i + 1
		go func() {
			defer wg.Done()
			if r.opt.Factory == nil {
				return
			}
			vu := r.opt.Factory(id)
			if vu == nil {
				return
			}
			if c, ok := vu.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}
			for range permits {
				atomic.AddInt64(&total, 1)
				if err := vu.Iterate(ctx); err != nil {
					if ctx.Err() != nil {
						atomic.AddInt64(&aborted, 1)
					} else {
						atomic.AddInt64(&errs, 1)
					}
				}
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	return Result{
		Total:    atomic.LoadInt64(&total),
		Errors:   atomic.LoadInt64(&errs),
		Aborted:  atomic.LoadInt64(&aborted),
		Duration: time.Since(start),
	}
}
