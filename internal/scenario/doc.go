// Package scenario implements the Vegas slots virtual-user script.
//
// A [Runner] owns everything one virtual user needs: its [params.Session],
// its private random source and its correlation context. Each call to
// [Runner.Run] walks the fixed state machine
//
//	Init → LobbyNav → SlotsNav → Spinning(×N) → ReturnNav → Done
//
// issuing every request through a [Host] and wrapping every step in a
// named transaction. The whole run is itself wrapped in the
// Vegas_Slots_Complete_Session transaction.
//
// # Host
//
// The [Host] interface is the boundary to the load generator:
//
//	type Host interface {
//		BeginTransaction(ctx context.Context, name string) (context.Context, Transaction)
//		Execute(ctx context.Context, action Action) error
//	}
//
// The runner never inspects responses. Execute returns an error only when
// the request could not be completed; the step's transaction is then ended
// with that error and the run stops with a [*StepError].
//
// # Headers
//
// Every scenario request carries its own x-dynatrace-test header in
// [Action.Headers]. Nothing is attached implicitly to later requests.
//
// # Cancellation
//
// The context passed to Run is checked at every state transition and
// before every spin, and think time waits on ctx.Done(). A cancelled run
// ends any open transaction as failed and issues no further requests.
package scenario
