/*
Package worker implements Skitter's worker runtime (spec.md §4.4): the C4
component, a cooperative single-threaded actor that owns one piece of
strategy-defined mutable state behind one FIFO mailbox.

Each Worker processes messages strictly in arrival order; at most one
ProcessHook activation runs at any instant, so hook bodies may treat state
as race-free without any locking of their own. If a hook activation
panics or returns an error, the worker logs the failure, marks itself
dead, and (if the owning strategy supplied one) invokes the WorkerDownHook
on the node that created it; without one the worker simply stays down.

The mailbox-processing loop is a single goroutine per worker that drains
one mailbox, one message at a time, forever, until the worker is stopped
or crashes.
*/
package worker
