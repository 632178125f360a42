package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// VUser is one virtual user. Iterate runs a single scenario iteration and
// returns an error when the iteration failed.
//
// A VUser that also implements io.Closer is closed by the worker that owns
// it once the test ends.
type VUser interface {
	Iterate(ctx context.Context) error
}

// VUserFunc adapts a function to the VUser interface.
type VUserFunc func(ctx context.Context) error

func (f VUserFunc) Iterate(ctx context.Context) error { return f(ctx) }

// Factory builds the virtual user with the given id. Ids start at 1.
type Factory func(id int) VUser

// ArrivalModel selects how iteration starts are spaced.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// LoadPatternType names a load pattern shape.
type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

// LoadPattern is one phase of a load profile, expressed in iterations
// started per second.
type LoadPattern struct {
	Name     string
	Type     LoadPatternType
	FromRate int
	ToRate   int
	Rate     int
	Duration time.Duration
	Steps    []LoadStep
}

// LoadStep is a fixed-rate step of a step pattern.
type LoadStep struct {
	Rate     int
	Duration time.Duration
}

// Options configure the Runner.
type Options struct {
	VUsers              int                         // number of virtual users, one goroutine each
	Iterations          int                         // total iterations across all users (0 means until duration/end)
	Duration            time.Duration               // overall time limit (0 means no duration cap)
	IterationsPerSecond int                         // iteration start pacing (0 means unlimited)
	ArrivalModel        ArrivalModel                // spacing of iteration starts
	LoadPatterns        []LoadPattern               // optional rate profile; overrides IterationsPerSecond
	Factory             Factory                     // virtual user constructor (required)
	LimiterFactory      func(rps int) *rate.Limiter // optional injection for tests
	PoissonSampler      func() float64              // optional exponential sampler for tests
	RandomSeed          int64                       // seed for the Poisson sampler; 0 uses the clock
}

func (o *Options) normalize() {
	if o.VUsers <= 0 {
		o.VUsers = 1
	}
	if o.Iterations < 0 {
		o.Iterations = 0
	}
	if o.IterationsPerSecond < 0 {
		o.IterationsPerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing across users.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
