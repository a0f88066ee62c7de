/*
Package runtime is the C8 strategy runtime API: the concrete
implementation of types.Ops that every hook Context calls through for
call/emit/send/remote_worker/local_worker (spec.md §4.8).

A Runtime owns the node's local worker pool, dials a transport.Client per
peer it needs to reach, and exposes itself to the transport server as both
a transport.LocalDeliverer (inbound worker_message envelopes find their
mailbox here) and a transport.WorkerCreator (inbound CreateWorker calls
instantiate a worker here on behalf of a strategy's remote_worker call
made from another node).

The struct shape is a single mutex-guarded map plus a handful of
collaborator pointers, with no internal goroutine loop of its own: a
Runtime has no periodic tick, it is purely called into by workers, the
router, and the transport server.

Per-call state (which node is executing, which invocation is in flight)
never lives on Runtime itself; it is captured once per hook activation in
a nodeOps value returned by Runtime.OpsFor, keeping Runtime itself safe to
share across every concurrently running worker on the node.

A cluster node's address doubles as its node id throughout this package
(WorkerHandle.NodeAddr, transport.ControlMessage.NodeID, and the
node_selector passed to remote_worker are all the same string space): there
is no separate node-id-to-address indirection layer, just a flat
single-address-per-peer model for cluster membership.
*/
package runtime
