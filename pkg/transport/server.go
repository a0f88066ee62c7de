package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

// LocalDeliverer hands a WorkerMessage that arrived over the wire to
// whatever locally owns that worker's mailbox (pkg/runtime wires this to
// the worker pool).
type LocalDeliverer interface {
	DeliverLocal(handle types.WorkerHandle, invocation types.Invocation, payload any) error
}

// WorkerCreator instantiates a worker for a given workflow node on this
// node, in response to a remote CreateWorker call (spec.md §4.5's
// remote_worker targeting a node other than the caller's own).
type WorkerCreator interface {
	CreateLocalWorker(nodeID string, initialState any, tag string) (types.WorkerHandle, error)
}

// Server is the node-side endpoint of the Channel RPC: it accepts one
// stream per connected node, authenticates its join token, feeds
// heartbeats into Membership, and routes worker_message envelopes to the
// local deliverer. Join-token auth is carried in the first control
// envelope of each stream.
type Server struct {
	grpcServer   *grpc.Server
	tokens       *TokenManager
	membership   *Membership
	deliverer    LocalDeliverer
	creator      WorkerCreator
	expectedRole Role

	mu      sync.RWMutex
	streams map[string]ChannelStreamServer // nodeID -> live stream
}

// NewServer constructs a transport Server. deliverer and creator are fixed
// here and may be nil: a nil deliverer drops inbound worker_message
// envelopes and a nil creator fails every CreateWorker call. The mode
// supervisors pass their pkg/runtime.Runtime as both.
func NewServer(tokens *TokenManager, membership *Membership, deliverer LocalDeliverer, creator WorkerCreator) *Server {
	s := &Server{
		tokens:     tokens,
		membership: membership,
		deliverer:  deliverer,
		creator:    creator,
		streams:    make(map[string]ChannelStreamServer),
	}

	s.grpcServer = grpc.NewServer()
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// Serve starts listening on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: failed to listen on %s: %w", addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn blocks serving on an already-bound listener; useful in tests
// that need to know the actual address a ":0" bind resolved to.
func (s *Server) ServeOn(lis net.Listener) error {
	log.WithComponent("transport").Info().Str("addr", lis.Addr().String()).Msg("channel server listening")
	return s.grpcServer.Serve(lis)
}

// Stop immediately stops the gRPC server, dropping any still-open
// streams rather than waiting for peers to close them on their own. A
// mode supervisor shutting down must make itself unreachable right away
// so connected peers observe the drop and can act on it (spec.md §4.9's
// shutdown_with_master/shutdown_with_workers propagation depends on the
// connection actually closing, not on a graceful drain that could block
// on a peer that never hangs up).
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// RequireRole restricts Stream to accept only joins whose token
// authorizes role, rejecting anything else as a mode mismatch (spec.md
// §4.5, §7). Unset (the default), a Server accepts a join token of any
// role, which a node that may be joined by more than one role needs.
func (s *Server) RequireRole(role Role) {
	s.expectedRole = role
}

// Send delivers an envelope to a specific connected node's stream, if
// still connected. Used to forward worker_message envelopes destined for
// a worker hosted elsewhere.
func (s *Server) Send(nodeID string, env *Envelope) error {
	s.mu.RLock()
	stream, ok := s.streams[nodeID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no connection to node %s", nodeID)
	}

	st, err := env.ToStruct()
	if err != nil {
		return err
	}
	return stream.Send(st)
}

// Stream implements ChannelServer: one bidirectional stream per
// connection. The first message must be a control join envelope
// carrying a valid token; afterwards control heartbeats and
// worker_message envelopes are accepted.
func (s *Server) Stream(stream ChannelStreamServer) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	env, err := EnvelopeFromStruct(first)
	if err != nil {
		return err
	}
	if env.Kind != KindControl || env.Control == nil || env.Control.Type != ControlJoin {
		return fmt.Errorf("transport: stream must open with a join control message")
	}

	role, err := s.tokens.Validate(env.Control.Token)
	if err != nil {
		return err
	}
	if s.expectedRole != "" && role != s.expectedRole {
		return &types.RemoteError{Addr: env.Control.Addr, Reason: fmt.Sprintf("mode mismatch: expected a %s join, got %s", s.expectedRole, role)}
	}

	nodeID := env.Control.NodeID
	s.mu.Lock()
	s.streams[nodeID] = stream
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.streams, nodeID)
		s.mu.Unlock()
	}()

	if s.membership != nil {
		s.membership.Join(nodeID, env.Control.Addr, env.Control.Tags)
	}
	log.WithComponent("transport").Info().Str("node_id", nodeID).Str("role", string(role)).Msg("node joined")

	for {
		in, err := stream.Recv()
		if err != nil {
			return err
		}
		env, err := EnvelopeFromStruct(in)
		if err != nil {
			log.WithComponent("transport").Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		s.handle(nodeID, env)
	}
}

func (s *Server) handle(nodeID string, env *Envelope) {
	switch env.Kind {
	case KindControl:
		switch env.Control.Type {
		case ControlHeartbeat:
			if s.membership != nil {
				s.membership.Heartbeat(nodeID)
			}
		}
	case KindWorkerMessage:
		if s.deliverer == nil {
			return
		}
		wm := env.WorkerMessage
		if err := s.deliverer.DeliverLocal(wm.Handle, wm.Invocation, wm.Payload); err != nil {
			if s.membership != nil {
				s.membership.publish(events.EventDeliveryDropped, err.Error(), wm.Handle.ID)
			}
		}
	}
}

// CreateWorker implements ChannelServer's unary RPC: it asks this node's
// WorkerCreator to instantiate a worker for the named workflow node and
// returns the resulting handle.
func (s *Server) CreateWorker(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.creator == nil {
		return nil, fmt.Errorf("transport: no worker creator configured on this node")
	}

	fields := req.AsMap()
	nodeID, _ := fields["node_id"].(string)
	tag, _ := fields["tag"].(string)
	initialState := fields["initial_state"]

	handle, err := s.creator.CreateLocalWorker(nodeID, initialState, tag)
	if err != nil {
		return nil, err
	}

	return structpb.NewStruct(map[string]any{
		"id":        handle.ID,
		"node_addr": handle.NodeAddr,
		"tag":       handle.Tag,
	})
}

// DefaultHeartbeatInterval is how often Client sends heartbeats.
const DefaultHeartbeatInterval = 5 * time.Second

// DialInsecure dials addr without transport security. Skitter's cluster
// traffic runs over plain gRPC, authenticated only by join token (see
// DESIGN.md for why mTLS isn't used here).
func DialInsecure(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}
