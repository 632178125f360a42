// Package runner drives virtual users for a load test.
//
// The runner starts one goroutine per virtual user and hands out iteration
// permits with support for:
//   - A fixed number of virtual users, each built once by [Factory]
//   - Iteration pacing (iterations started per second)
//   - Duration-based and count-based test termination
//   - Multiple arrival models (uniform, Poisson)
//   - Dynamic load patterns (ramp, step, spike)
//
// # Basic Usage
//
//	opts := runner.Options{
//		VUsers:              10,
//		Iterations:          1000,
//		Duration:            time.Minute,
//		IterationsPerSecond: 5,
//		Factory:             newVUser,
//	}
//	result := runner.New(opts).Run(ctx)
//
// # Virtual Users
//
// A [VUser] runs one scenario iteration per call:
//
//	type VUser interface {
//		Iterate(ctx context.Context) error
//	}
//
// Each worker owns exactly one VUser for the whole test, so per-user state
// needs no locking. A VUser implementing io.Closer is closed when its
// worker exits.
//
// Iterations that fail after the test has ended (deadline reached, load
// pattern finished or ctx cancelled) are reported in [Result.Aborted]
// rather than [Result.Errors].
//
// # Middleware
//
//   - [WithLogging]: log failed iterations
//   - [WithRetry]: re-run failed iterations with backoff
package runner
