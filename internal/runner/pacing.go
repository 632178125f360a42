package runner

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces out iteration starts.
type pacer interface {
	Wait(ctx context.Context) error
	SetRate(perSecond float64)
}

func newPacer(opt Options, plan *patternPlan) pacer {
	initial := float64(opt.IterationsPerSecond)
	if plan != nil {
		initial, _ = plan.rateAt(0)
	}

	if opt.ArrivalModel == ArrivalModelPoisson {
		sample := opt.PoissonSampler
		if sample == nil {
			seed := uint64(opt.RandomSeed)
			sample = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).ExpFloat64
		}
		p := &poissonPacer{sample: sample}
		p.SetRate(initial)
		return p
	}

	p := &limiterPacer{limiter: opt.LimiterFactory(opt.IterationsPerSecond)}
	if plan != nil {
		p.SetRate(initial)
	}
	return p
}

// limiterPacer starts iterations at evenly spaced intervals.
type limiterPacer struct {
	limiter *rate.Limiter
}

func (l *limiterPacer) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// SetRate retunes the limiter; a non-positive rate removes the limit.
func (l *limiterPacer) SetRate(perSecond float64) {
	if l == nil || l.limiter == nil {
		return
	}
	if perSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		l.limiter.SetBurst(0)
		return
	}
	l.limiter.SetLimit(rate.Limit(perSecond))
	l.limiter.SetBurst(max(1, int(math.Ceil(perSecond))))
}

// poissonPacer draws exponential gaps between iteration starts, so starts
// form a Poisson process at the configured mean rate.
type poissonPacer struct {
	mu        sync.Mutex
	perSecond float64
	sample    func() float64 // Exp(1) variates; guarded by mu
}

func (p *poissonPacer) Wait(ctx context.Context) error {
	gap := p.nextGap()
	if gap <= 0 {
		return nil
	}
	timer := time.NewTimer(gap)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonPacer) SetRate(perSecond float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.perSecond = max(perSecond, 0)
	p.mu.Unlock()
}

func (p *poissonPacer) nextGap() time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perSecond <= 0 || p.sample == nil {
		return 0
	}
	gap := p.sample() / p.perSecond * float64(time.Second)
	if gap >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(gap)
}
