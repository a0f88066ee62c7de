/*
Package events provides an in-memory event broker for Skitter's cluster
notifications: node membership, worker crashes, and deployment lifecycle
(spec.md §4.9 and §7).

The events package implements a lightweight, fire-and-forget event bus:
publishers never block, slow subscribers drop events rather than stall
the broker, and there is no persistence or replay. This trades guaranteed
delivery for a simple, non-blocking path from the runtime's internals to
anything that wants to observe it: logs, metrics, or a future CLI
"watch" command.

# Event Types

	EventNodeJoined      - a node completed the join handshake
	EventNodeDown        - a node's heartbeat timed out
	EventWorkerCrashed   - a ProcessHook activation failed or panicked
	EventDeployStarted   - a deployment began flattening/ordering nodes
	EventDeployFailed    - a deployment failed and is being rolled back
	EventUndeployed      - a node was torn down (explicit or rollback)
	EventDeliveryDropped - a value was dropped (an out-port with no
	                       connected destination, or a message for a
	                       dead or unknown worker), or a worker's mailbox
	                       exceeded its soft limit (Metadata carries
	                       worker_id and depth)

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info(event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventWorkerCrashed,
		Message: "worker w-1 terminated",
		Metadata: map[string]string{"worker_id": "w-1"},
	})

# Design Patterns

Non-blocking publish: Publish sends to a buffered channel and returns
immediately; a full buffer means the broker itself is backed up, not
that publish waits.

Fan-out: each subscriber owns its own buffered channel, so one slow
subscriber cannot stall another.

Fire-and-forget: no acknowledgment, no retry. Suitable for observability,
not for anything requiring guaranteed delivery.
*/
package events
