package transport

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/skitter-run/skitter/pkg/types"
)

// Kind distinguishes the two things that travel over a Channel stream.
type Kind string

const (
	KindControl       Kind = "control"
	KindWorkerMessage Kind = "worker_message"
)

// ControlType enumerates membership control messages (spec.md §4.5).
type ControlType string

const (
	ControlJoin      ControlType = "join"
	ControlHeartbeat ControlType = "heartbeat"
	ControlNodeDown  ControlType = "node_down"
)

// ControlMessage carries membership and liveness information between
// nodes: join requests (with their join token) and periodic heartbeats.
// ControlNodeDown is defined but nothing sends it; a heartbeat timeout is
// reported only locally, as an events.EventNodeDown from Membership.
type ControlMessage struct {
	Type   ControlType
	NodeID string
	Addr   string
	Tags   []string
	Token  string
}

// WorkerMessage carries one message destined for a worker hosted on the
// remote end of the connection (spec.md §4.4's send, crossing a node
// boundary).
type WorkerMessage struct {
	Handle     types.WorkerHandle
	Invocation types.Invocation
	Payload    any
}

// Envelope is the single payload type the Channel RPC streams in both
// directions.
type Envelope struct {
	Kind          Kind
	Control       *ControlMessage
	WorkerMessage *WorkerMessage
}

// ToStruct encodes the envelope into a structpb.Struct, the real
// proto.Message carried over the wire.
func (e *Envelope) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{"kind": string(e.Kind)}

	switch e.Kind {
	case KindControl:
		if e.Control == nil {
			return nil, fmt.Errorf("transport: control envelope missing control message")
		}
		tags := make([]any, len(e.Control.Tags))
		for i, t := range e.Control.Tags {
			tags[i] = t
		}
		m["control"] = map[string]any{
			"type":    string(e.Control.Type),
			"node_id": e.Control.NodeID,
			"addr":    e.Control.Addr,
			"tags":    tags,
			"token":   e.Control.Token,
		}
	case KindWorkerMessage:
		if e.WorkerMessage == nil {
			return nil, fmt.Errorf("transport: worker_message envelope missing payload")
		}
		payload, err := structpb.NewValue(e.WorkerMessage.Payload)
		if err != nil {
			return nil, fmt.Errorf("transport: payload is not wire-encodable: %w", err)
		}
		m["worker_message"] = map[string]any{
			"handle_id":   e.WorkerMessage.Handle.ID,
			"handle_addr": e.WorkerMessage.Handle.NodeAddr,
			"handle_tag":  e.WorkerMessage.Handle.Tag,
			"invocation":  string(e.WorkerMessage.Invocation),
			"payload":     payload.AsInterface(),
		}
	default:
		return nil, fmt.Errorf("transport: unknown envelope kind %q", e.Kind)
	}

	return structpb.NewStruct(m)
}

// EnvelopeFromStruct decodes a structpb.Struct received off the wire back
// into an Envelope.
func EnvelopeFromStruct(s *structpb.Struct) (*Envelope, error) {
	fields := s.AsMap()

	kindVal, _ := fields["kind"].(string)
	env := &Envelope{Kind: Kind(kindVal)}

	switch env.Kind {
	case KindControl:
		raw, ok := fields["control"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transport: control envelope missing control message")
		}
		var tags []string
		if rawTags, ok := raw["tags"].([]any); ok {
			for _, t := range rawTags {
				if s, ok := t.(string); ok {
					tags = append(tags, s)
				}
			}
		}
		env.Control = &ControlMessage{
			Type:   ControlType(stringField(raw, "type")),
			NodeID: stringField(raw, "node_id"),
			Addr:   stringField(raw, "addr"),
			Tags:   tags,
			Token:  stringField(raw, "token"),
		}
	case KindWorkerMessage:
		raw, ok := fields["worker_message"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transport: worker_message envelope missing payload")
		}
		env.WorkerMessage = &WorkerMessage{
			Handle: types.WorkerHandle{
				ID:       stringField(raw, "handle_id"),
				NodeAddr: stringField(raw, "handle_addr"),
				Tag:      stringField(raw, "handle_tag"),
			},
			Invocation: types.Invocation(stringField(raw, "invocation")),
			Payload:    raw["payload"],
		}
	default:
		return nil, fmt.Errorf("transport: unknown envelope kind %q", env.Kind)
	}

	return env, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
