package ha_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/ha"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func newSingleNodeCluster(t *testing.T, broker *events.Broker) *ha.Cluster {
	t.Helper()
	addr := freeAddr(t)
	c, err := ha.New(ha.Config{
		NodeID:    "node-1",
		BindAddr:  addr,
		DataDir:   t.TempDir(),
		Peers:     []ha.Peer{{ID: "node-1", Addr: addr}},
		Bootstrap: true,
		Broker:    broker,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func TestSingleNodeClusterBecomesLeader(t *testing.T) {
	c := newSingleNodeCluster(t, nil)

	require.Eventually(t, c.IsLeader, 5*time.Second, 10*time.Millisecond)
}

func TestDeployAndUndeployReplicateState(t *testing.T) {
	c := newSingleNodeCluster(t, nil)
	require.Eventually(t, c.IsLeader, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Deploy("counter"))
	require.Equal(t, ha.State{WorkflowName: "counter", Deployed: true}, c.State())

	require.NoError(t, c.Undeploy())
	require.Equal(t, ha.State{}, c.State())
}

func TestLeadershipChangePublishesEvent(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	newSingleNodeCluster(t, broker)

	select {
	case evt := <-sub:
		require.Equal(t, events.EventHALeaderChanged, evt.Type)
		require.Equal(t, "true", evt.Metadata["leader"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for leadership-changed event")
	}
}
