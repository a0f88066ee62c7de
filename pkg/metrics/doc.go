/*
Package metrics exposes Skitter's Prometheus metrics and health/liveness
HTTP handlers.

Cluster and delivery metrics (connected nodes, active workers, mailbox
soft-limit exceedances, delivery drops, deploy/undeploy outcomes and
duration, callback invocation counts) are mostly driven by Collector
reacting to pkg/events rather than polling, since most of what's
interesting already crosses the event broker on its way to a log line.
Worker count is the one gauge polled directly off a runtime, since it has
no event of its own.
*/
package metrics
