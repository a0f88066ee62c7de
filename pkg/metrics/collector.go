package metrics

import (
	"strconv"
	"time"

	"github.com/skitter-run/skitter/pkg/events"
)

// WorkerCounter is the subset of *runtime.Runtime a Collector needs to
// poll for worker-count gauges. Defined narrowly here so this package
// doesn't import pkg/runtime just for a struct it only ever calls one
// method on.
type WorkerCounter interface {
	WorkerCount() int
}

// Collector bridges the cluster event Broker (and a runtime's worker
// count) into Prometheus. Most of what it reports arrives as events, node
// joins/drops, deploy outcomes, crashes, drops, so it mostly reacts rather
// than polls; WorkerCount is the one gauge cheap enough, and lacking its
// own event, to poll instead.
type Collector struct {
	broker *events.Broker
	source WorkerCounter
	sub    events.Subscriber
	stopCh chan struct{}
}

// NewCollector creates a Collector. source may be nil, in which case the
// worker-count gauge is never updated (useful for a worker process that
// doesn't itself run pkg/runtime, or in tests).
func NewCollector(broker *events.Broker, source WorkerCounter) *Collector {
	return &Collector{
		broker: broker,
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start subscribes to broker and begins polling the worker-count gauge
// every pollInterval. Both run until Stop is called.
func (c *Collector) Start(pollInterval time.Duration) {
	if c.broker != nil {
		c.sub = c.broker.Subscribe()
		go c.consumeEvents()
	}

	if c.source == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		c.pollWorkerCount()
		for {
			select {
			case <-ticker.C:
				c.pollWorkerCount()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop unsubscribes from the broker and stops polling.
func (c *Collector) Stop() {
	close(c.stopCh)
	if c.sub != nil {
		c.broker.Unsubscribe(c.sub)
	}
}

func (c *Collector) pollWorkerCount() {
	WorkersActive.Set(float64(c.source.WorkerCount()))
}

func (c *Collector) consumeEvents() {
	for {
		select {
		case evt, ok := <-c.sub:
			if !ok {
				return
			}
			c.handle(evt)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) handle(evt *events.Event) {
	switch evt.Type {
	case events.EventNodeJoined:
		NodesConnected.Inc()
	case events.EventNodeDown:
		NodesConnected.Dec()
	case events.EventWorkerCrashed:
		WorkerCrashesTotal.Inc()
	case events.EventDeliveryDropped:
		// Two unrelated producers share this event type: the router
		// (no link for an emitted port) tags node_id/port, the runtime's
		// soft-limit hook tags worker_id. Route each to its own counter.
		if workerID, ok := evt.Metadata["worker_id"]; ok {
			MailboxSoftLimitExceededTotal.Inc()
			if depth, ok := strconv.Atoi(evt.Metadata["depth"]); ok == nil {
				MailboxDepth.WithLabelValues(workerID).Set(float64(depth))
			}
		} else {
			DeliveryDroppedTotal.WithLabelValues(evt.Metadata["node_id"], evt.Metadata["port"]).Inc()
		}
	case events.EventDeployed:
		DeploymentsTotal.WithLabelValues("success").Inc()
		if d, ok := parseDuration(evt.Metadata["duration_seconds"]); ok {
			DeploymentDuration.Observe(d)
		}
	case events.EventDeployFailed:
		DeploymentsTotal.WithLabelValues("failed").Inc()
	case events.EventUndeployed:
		UndeploymentsTotal.Inc()
	case events.EventHALeaderChanged:
		if evt.Metadata["leader"] == "true" {
			HALeader.Set(1)
		} else {
			HALeader.Set(0)
		}
	}
}

func parseDuration(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
