package transport

import (
	"sync"
	"time"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
)

// NodeInfo describes one member of the cluster as seen by Membership.
type NodeInfo struct {
	ID       string
	Addr     string
	Tags     []string
	LastSeen time.Time
}

// Membership tracks connected nodes and detects failures by heartbeat
// timeout, the failure-detection half of spec.md §4.5 ("a master detects
// a dead worker by heartbeat timeout, not TCP half-close").
type Membership struct {
	mu      sync.RWMutex
	nodes   map[string]*NodeInfo
	timeout time.Duration
	broker  *events.Broker

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMembership constructs a Membership tracker. timeout is how long a
// node may go without a heartbeat before it is declared down.
func NewMembership(timeout time.Duration, broker *events.Broker) *Membership {
	return &Membership{
		nodes:   make(map[string]*NodeInfo),
		timeout: timeout,
		broker:  broker,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Join registers a node as present, or refreshes it if already known.
func (m *Membership) Join(id, addr string, tags []string) {
	m.mu.Lock()
	_, existed := m.nodes[id]
	m.nodes[id] = &NodeInfo{ID: id, Addr: addr, Tags: tags, LastSeen: time.Now()}
	m.mu.Unlock()

	if !existed {
		m.publish(events.EventNodeJoined, "node "+id+" joined", id)
	}
}

// Heartbeat refreshes a known node's last-seen time.
func (m *Membership) Heartbeat(id string) {
	m.mu.Lock()
	if n, ok := m.nodes[id]; ok {
		n.LastSeen = time.Now()
	}
	m.mu.Unlock()
}

// Nodes returns a snapshot of currently known nodes.
func (m *Membership) Nodes() []*NodeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*NodeInfo, 0, len(m.nodes))
	for _, n := range m.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// Remove drops a node from membership, e.g. after it is declared down.
func (m *Membership) Remove(id string) {
	m.mu.Lock()
	delete(m.nodes, id)
	m.mu.Unlock()
}

// Start begins the heartbeat-timeout sweep on its own goroutine, checking
// every interval for nodes whose LastSeen has exceeded timeout.
func (m *Membership) Start(interval time.Duration) {
	go m.sweepLoop(interval)
}

// Stop halts the sweep loop and waits for it to exit.
func (m *Membership) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Membership) sweepLoop(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Membership) sweep() {
	now := time.Now()

	var down []string
	m.mu.Lock()
	for id, n := range m.nodes {
		if now.Sub(n.LastSeen) > m.timeout {
			down = append(down, id)
			delete(m.nodes, id)
		}
	}
	m.mu.Unlock()

	for _, id := range down {
		log.WithComponent("transport").Warn().Str("node_id", id).Msg("node heartbeat timed out")
		m.publish(events.EventNodeDown, "node "+id+" heartbeat timed out", id)
	}
}

func (m *Membership) publish(t events.EventType, msg, nodeID string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		Type:     t,
		Message:  msg,
		Metadata: map[string]string{"node_id": nodeID},
	})
}
