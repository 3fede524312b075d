// Package fiberevent implements the event core of a cooperative, multi-core
// scheduler: a fixed pool of event slots, an interrupt-safe pending set, a
// per-core watcher directory, a suspend/resume wait protocol, and the
// per-core dispatch loop that wakes suspended fibers.
//
// # Architecture
//
// A [State] owns [NumEvents] event slots shared by a small fixed number of
// cores. Drivers claim a slot on the core that will wait for it
// ([Core.Claim]), signal it from any goroutine ([State.SetPending]), and
// release it when the resource goes away ([Core.Unclaim]).
//
// Fibers park on an event with [Wait] (or [WaitUntil]), which runs a
// [Waiter] state machine: the predicate is tried first, and only if it is
// indeterminate is the fiber registered as a watcher and suspended. Each
// resume re-runs the predicate.
//
// The scheduler driving a core calls [Core.Dispatch] whenever it has nothing
// else to run. Dispatch drains the pending bits owned by the core, resumes
// the watchers of each signalled slot, and otherwise idles until an event is
// signalled or the deadline is reached.
//
// The core does not schedule fibers itself. Anything implementing [Fiber]
// and [Resumer] can drive it; package fiber provides a goroutine backed
// implementation.
//
// # Thread Safety
//
//   - [State.SetPending], [State.ClearPending], [State.Enabled] and
//     [Core.Wake] are safe to call from any goroutine, including producers
//     standing in for interrupt handlers
//   - Claim, Unclaim, Watch, Unwatch, Wait and Dispatch for a [Core] must be
//     called from the goroutine (or baton-passing set of goroutines) that
//     drives that core
package fiberevent
