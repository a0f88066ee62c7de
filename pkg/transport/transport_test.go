package transport_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/transport"
	"github.com/skitter-run/skitter/pkg/types"
)

type fakeDeliverer struct {
	mu       sync.Mutex
	received []any
}

func (f *fakeDeliverer) DeliverLocal(handle types.WorkerHandle, invocation types.Invocation, payload any) error {
	f.mu.Lock()
	f.received = append(f.received, payload)
	f.mu.Unlock()
	return nil
}

type fakeCreator struct {
	lastNodeID string
}

func (f *fakeCreator) CreateLocalWorker(nodeID string, initialState any, tag string) (types.WorkerHandle, error) {
	f.lastNodeID = nodeID
	return types.WorkerHandle{ID: "created-" + nodeID, NodeAddr: "remote:9000", Tag: tag}, nil
}

func startTestServer(t *testing.T, tokens *transport.TokenManager, deliverer *fakeDeliverer, creator *fakeCreator) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := transport.NewServer(tokens, nil, deliverer, creator)
	go srv.ServeOn(lis)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestClientServerJoinAndWorkerMessage(t *testing.T) {
	tokens := transport.NewTokenManager()
	jt, err := tokens.Generate(transport.RoleWorker, time.Minute)
	require.NoError(t, err)

	deliverer := &fakeDeliverer{}
	addr := startTestServer(t, tokens, deliverer, nil)

	client, err := transport.Dial(addr, "node-a", jt.Token, []string{"gpu"}, nil)
	require.NoError(t, err)
	defer client.Close()

	handle := types.WorkerHandle{ID: "w-1"}
	require.Eventually(t, func() bool {
		return client.SendWorkerMessage(handle, types.Invocation("inv-1"), "hello") == nil
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		deliverer.mu.Lock()
		defer deliverer.mu.Unlock()
		return len(deliverer.received) == 1
	}, time.Second, 10*time.Millisecond)

	deliverer.mu.Lock()
	require.Equal(t, []any{"hello"}, deliverer.received)
	deliverer.mu.Unlock()
}

func TestClientRejectedWithInvalidToken(t *testing.T) {
	tokens := transport.NewTokenManager()
	addr := startTestServer(t, tokens, &fakeDeliverer{}, nil)

	client, err := transport.Dial(addr, "node-a", "bogus-token", nil, nil)
	require.NoError(t, err) // dial succeeds; rejection surfaces on the stream
	defer client.Close()

	require.Eventually(t, func() bool {
		return client.SendWorkerMessage(types.WorkerHandle{ID: "w-1"}, "inv", "x") != nil
	}, time.Second, 10*time.Millisecond)
}

func TestClientRejectedOnRoleMismatch(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	tokens := transport.NewTokenManager()
	srv := transport.NewServer(tokens, nil, &fakeDeliverer{}, nil)
	srv.RequireRole(transport.RoleMaster)
	go srv.ServeOn(lis)
	t.Cleanup(srv.Stop)

	jt, err := tokens.Generate(transport.RoleWorker, time.Minute)
	require.NoError(t, err)

	client, err := transport.Dial(lis.Addr().String(), "node-a", jt.Token, nil, nil)
	require.NoError(t, err) // dial succeeds; rejection surfaces on the stream
	defer client.Close()

	require.Eventually(t, func() bool {
		return client.SendWorkerMessage(types.WorkerHandle{ID: "w-1"}, "inv", "x") != nil
	}, time.Second, 10*time.Millisecond)
}

func TestClientCreateRemoteWorker(t *testing.T) {
	tokens := transport.NewTokenManager()
	jt, err := tokens.Generate(transport.RoleWorker, time.Minute)
	require.NoError(t, err)

	creator := &fakeCreator{}
	addr := startTestServer(t, tokens, &fakeDeliverer{}, creator)

	client, err := transport.Dial(addr, "node-a", jt.Token, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	handle, err := client.CreateRemoteWorker("node-b", 0.0, "tag-1")
	require.NoError(t, err)
	require.Equal(t, "created-node-b", handle.ID)
	require.Equal(t, "tag-1", handle.Tag)
	require.Equal(t, "node-b", creator.lastNodeID)
}
