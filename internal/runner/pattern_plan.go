package runner

import (
	"context"
	"sort"
	"time"
)

// patternTick is how often a running plan retunes the pacer.
const patternTick = 100 * time.Millisecond

// patternPlan is a load profile flattened into back-to-back segments. Each
// segment moves linearly from fromRate to toRate iterations per second.
type patternPlan struct {
	segments []patternSegment
	length   time.Duration
}

type patternSegment struct {
	end      time.Duration // offset from the start of the plan
	length   time.Duration
	fromRate float64
	toRate   float64
}

func segmentsOf(p LoadPattern) []patternSegment {
	flat := func(d time.Duration, perSecond int) patternSegment {
		return patternSegment{length: d, fromRate: float64(perSecond), toRate: float64(perSecond)}
	}
	switch p.Type {
	case LoadPatternTypeRamp:
		return []patternSegment{{length: p.Duration, fromRate: float64(p.FromRate), toRate: float64(p.ToRate)}}
	case LoadPatternTypeSpike:
		return []patternSegment{flat(p.Duration, p.Rate)}
	case LoadPatternTypeStep:
		segs := make([]patternSegment, 0, len(p.Steps))
		for _, step := range p.Steps {
			segs = append(segs, flat(step.Duration, step.Rate))
		}
		return segs
	default:
		return nil
	}
}

// compilePatternPlan returns nil when no pattern contributes a segment
// with a positive duration.
func compilePatternPlan(patterns []LoadPattern) *patternPlan {
	plan := &patternPlan{}
	for _, pattern := range patterns {
		for _, seg := range segmentsOf(pattern) {
			if seg.length <= 0 {
				continue
			}
			plan.length += seg.length
			seg.end = plan.length
			plan.segments = append(plan.segments, seg)
		}
	}
	if len(plan.segments) == 0 {
		return nil
	}
	return plan
}

// rateAt returns the target rate elapsed into the plan, or false once the
// plan is over.
func (p *patternPlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil || elapsed >= p.length {
		return 0, false
	}
	elapsed = max(elapsed, 0)
	i := sort.Search(len(p.segments), func(i int) bool { return elapsed < p.segments[i].end })
	seg := p.segments[i]
	if seg.fromRate == seg.toRate {
		return seg.fromRate, true
	}
	into := float64(elapsed-(seg.end-seg.length)) / float64(seg.length)
	return seg.fromRate + (seg.toRate-seg.fromRate)*into, true
}

func (p *patternPlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.length
}

// drive retunes pc along the plan until the plan ends or ctx is done, then
// calls finish to end the test.
func (p *patternPlan) drive(ctx context.Context, pc pacer, finish context.CancelFunc) {
	defer finish()
	if p == nil || pc == nil {
		return
	}
	start := time.Now()
	ticker := time.NewTicker(patternTick)
	defer ticker.Stop()
	for {
		perSecond, ok := p.rateAt(time.Since(start))
		if !ok {
			return
		}
		pc.SetRate(perSecond)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
