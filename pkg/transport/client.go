package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

// Handler receives envelopes arriving on a Client's stream, i.e.
// worker_message values routed back from the node this Client dialed.
type Handler func(env *Envelope)

// Client is the dialing side of the Channel RPC: one node connecting to
// another (worker-to-master or master-to-master), grounded on the
// teacher's pkg/client/client.go dial/reconnect shape with the mTLS
// certificate dance replaced by a join token sent as the stream's first
// message.
type Client struct {
	conn   *grpc.ClientConn
	stream ChannelStreamClient
	cancel context.CancelFunc

	heartbeatInterval time.Duration
	stopCh            chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to addr, performs the join handshake with token, and
// starts a heartbeat loop. handler is invoked for every envelope the
// remote side sends back.
func Dial(addr string, nodeID, token string, tags []string, handler Handler) (*Client, error) {
	conn, err := DialInsecure(addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewChannelClient(conn).Stream(ctx)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("transport: open stream to %s: %w", addr, err)
	}

	join := &Envelope{
		Kind: KindControl,
		Control: &ControlMessage{
			Type:   ControlJoin,
			NodeID: nodeID,
			Addr:   addr,
			Tags:   tags,
			Token:  token,
		},
	}
	st, err := join.ToStruct()
	if err != nil {
		cancel()
		conn.Close()
		return nil, err
	}
	if err := stream.Send(st); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("transport: join handshake with %s: %w", addr, err)
	}

	c := &Client{
		conn:              conn,
		stream:            stream,
		cancel:            cancel,
		heartbeatInterval: DefaultHeartbeatInterval,
		stopCh:            make(chan struct{}),
		done:              make(chan struct{}),
	}

	go c.recvLoop(handler)
	go c.heartbeatLoop(nodeID)

	return c, nil
}

// CreateRemoteWorker asks the node this Client is dialed to instantiate
// a worker for workflow node nodeID, returning its handle.
func (c *Client) CreateRemoteWorker(nodeID string, initialState any, tag string) (types.WorkerHandle, error) {
	req, err := structpb.NewStruct(map[string]any{
		"node_id":       nodeID,
		"tag":           tag,
		"initial_state": initialState,
	})
	if err != nil {
		return types.WorkerHandle{}, fmt.Errorf("transport: initial state is not wire-encodable: %w", err)
	}

	resp, err := NewChannelClient(c.conn).CreateWorker(context.Background(), req)
	if err != nil {
		return types.WorkerHandle{}, err
	}

	fields := resp.AsMap()
	id, _ := fields["id"].(string)
	addr, _ := fields["node_addr"].(string)
	respTag, _ := fields["tag"].(string)

	return types.WorkerHandle{ID: id, NodeAddr: addr, Tag: respTag}, nil
}

// Close tears down the client's stream and connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	c.cancel()
	return c.conn.Close()
}

// Done returns a channel that closes once this Client's stream has ended,
// whether because Close was called or because the remote side dropped
// the connection. Mode supervisors watch it to detect peer loss for
// shutdown_with_master/shutdown_with_workers (spec.md §4.9).
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendWorkerMessage forwards one message to a worker hosted on the
// remote end of this connection.
func (c *Client) SendWorkerMessage(handle types.WorkerHandle, invocation types.Invocation, payload any) error {
	env := &Envelope{
		Kind:          KindWorkerMessage,
		WorkerMessage: &WorkerMessage{Handle: handle, Invocation: invocation, Payload: payload},
	}
	st, err := env.ToStruct()
	if err != nil {
		return err
	}
	return c.stream.Send(st)
}

func (c *Client) recvLoop(handler Handler) {
	defer c.closeOnce.Do(func() { close(c.stopCh) })
	defer close(c.done)

	for {
		in, err := c.stream.Recv()
		if err != nil {
			log.WithComponent("transport").Warn().Err(err).Msg("channel stream closed")
			return
		}
		env, err := EnvelopeFromStruct(in)
		if err != nil {
			log.WithComponent("transport").Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		if handler != nil {
			handler(env)
		}
	}
}

func (c *Client) heartbeatLoop(nodeID string) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			env := &Envelope{
				Kind:    KindControl,
				Control: &ControlMessage{Type: ControlHeartbeat, NodeID: nodeID},
			}
			st, err := env.ToStruct()
			if err != nil {
				continue
			}
			if err := c.stream.Send(st); err != nil {
				log.WithComponent("transport").Warn().Err(err).Msg("heartbeat send failed")
			}
		case <-c.stopCh:
			return
		}
	}
}
