package transport_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/transport"
	"github.com/skitter-run/skitter/pkg/types"
)

func TestEnvelopeControlRoundTrip(t *testing.T) {
	env := &transport.Envelope{
		Kind: transport.KindControl,
		Control: &transport.ControlMessage{
			Type:   transport.ControlJoin,
			NodeID: "node-1",
			Addr:   "10.0.0.1:9000",
			Tags:   []string{"gpu", "east"},
			Token:  "tok-abc",
		},
	}

	st, err := env.ToStruct()
	require.NoError(t, err)

	decoded, err := transport.EnvelopeFromStruct(st)
	require.NoError(t, err)
	require.Equal(t, transport.KindControl, decoded.Kind)
	require.Equal(t, env.Control.NodeID, decoded.Control.NodeID)
	require.Equal(t, env.Control.Addr, decoded.Control.Addr)
	require.Equal(t, env.Control.Tags, decoded.Control.Tags)
	require.Equal(t, env.Control.Token, decoded.Control.Token)
}

func TestEnvelopeWorkerMessageRoundTrip(t *testing.T) {
	env := &transport.Envelope{
		Kind: transport.KindWorkerMessage,
		WorkerMessage: &transport.WorkerMessage{
			Handle:     types.WorkerHandle{ID: "w-1", NodeAddr: "10.0.0.2:9000", Tag: "key-42"},
			Invocation: types.Invocation("inv-1"),
			Payload:    map[string]any{"count": 3.0},
		},
	}

	st, err := env.ToStruct()
	require.NoError(t, err)

	decoded, err := transport.EnvelopeFromStruct(st)
	require.NoError(t, err)
	require.Equal(t, transport.KindWorkerMessage, decoded.Kind)
	require.Equal(t, env.WorkerMessage.Handle, decoded.WorkerMessage.Handle)
	require.Equal(t, env.WorkerMessage.Invocation, decoded.WorkerMessage.Invocation)
	require.Equal(t, env.WorkerMessage.Payload, decoded.WorkerMessage.Payload)
}

func TestEnvelopeRejectsUnknownKind(t *testing.T) {
	_, err := (&transport.Envelope{Kind: "bogus"}).ToStruct()
	require.Error(t, err)
}
