package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/transport"
)

func TestMembershipJoinPublishesOnce(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	m := transport.NewMembership(time.Minute, broker)
	m.Join("node-1", "10.0.0.1:9000", nil)
	m.Join("node-1", "10.0.0.1:9000", nil) // refresh, not a second join

	select {
	case ev := <-sub:
		require.Equal(t, events.EventNodeJoined, ev.Type)
	case <-time.After(time.Second):
		require.Fail(t, "expected a node.joined event")
	}

	select {
	case ev := <-sub:
		require.Fail(t, "unexpected second event: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	require.Equal(t, "node-1", nodes[0].ID)
}

func TestMembershipSweepDeclaresNodeDown(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	m := transport.NewMembership(10*time.Millisecond, broker)
	m.Join("node-1", "10.0.0.1:9000", nil)
	<-sub // drain the join event

	m.Start(5 * time.Millisecond)
	defer m.Stop()

	select {
	case ev := <-sub:
		require.Equal(t, events.EventNodeDown, ev.Type)
	case <-time.After(time.Second):
		require.Fail(t, "expected a node.down event")
	}

	require.Empty(t, m.Nodes())
}
