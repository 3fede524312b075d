// Package fiber provides a cooperative scheduler driving one
// [fiberevent.Core]. Fibers are goroutines that pass a baton, so exactly
// one fiber (or the scheduler itself) runs at a time, and a fiber only gives
// up control in [Fiber.Suspend].
//
// The scheduler runs ready fibers, fires sleep and alarm timers, and, when
// it has nothing else to do, calls [fiberevent.Core.Dispatch] to idle until
// an event resumes a watcher.
package fiber
