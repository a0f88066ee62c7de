/*
Package supervisor implements the C9 mode supervisors (spec.md §4.9): the
three process shapes Skitter ships as: Local, Worker, and Master, each
wiring together the lower components (pkg/registry, pkg/runtime,
pkg/deploy, pkg/transport) in the order its mode requires, then blocking
until an OS signal or a cluster event (peer disconnect under the
configured shutdown policy) asks it to stop.

Local starts every component in one address space and deploys its
workflow immediately; workers are goroutines. Worker starts only the
registry, the worker runtime, and the transport, then waits for a master
to attach; it does no deploying of its own. Master starts the registry,
the transport, and the deployment engine, connects to its configured
workers, and once they are present deploys the configured workflow, if
any.

Shutdown propagation watches the transport connection to each peer
(runtime.Runtime.PeerDone), not pkg/events: a Worker configured
with ShutdownWithMaster (the default) terminates when its master's
connection drops; a Master configured with ShutdownWithWorkers terminates
when any registered worker disconnects, re-issuing undeploy to the nodes
still reachable before exiting.

Each mode constructs its subsystems in dependency order, prints
readiness, then blocks on a select between an OS signal channel and a
peer/error event channel, followed by a fixed shutdown sequence run in
the reverse order things were started.
*/
package supervisor
