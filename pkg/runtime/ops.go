package runtime

import (
	"fmt"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/invoker"
	"github.com/skitter-run/skitter/pkg/transport"
	"github.com/skitter-run/skitter/pkg/types"
)

// nodeOps is the types.Ops a single hook activation sees: bound to one
// workflow node's Operation and one invocation, so its Call dispatches
// against the right callback table and its Send/Emit tag outgoing traffic
// with the right correlation token (spec.md §3, §4.8).
type nodeOps struct {
	rt         *Runtime
	nodeID     string
	component  *types.Operation
	invocation types.Invocation
}

func (n *nodeOps) Call(cbName string, args []any) (types.CallbackResult, error) {
	return invoker.Call(n.component, cbName, len(args), nil, nil, args)
}

func (n *nodeOps) CallFull(cbName string, state, config any, args []any) (types.CallbackResult, error) {
	return invoker.Call(n.component, cbName, len(args), state, config, args)
}

func (n *nodeOps) CallIfExists(cbName string, state, config any, args []any) (types.CallbackResult, error) {
	return invoker.CallIfExists(n.component, cbName, len(args), state, config, args), nil
}

// Emit enqueues port_values at the emit router for nodeID, preserving
// per-port emission order (spec.md §4.7).
func (n *nodeOps) Emit(portValues map[string][]any) {
	n.rt.mu.RLock()
	r := n.rt.router
	n.rt.mu.RUnlock()
	if r == nil {
		n.rt.logger.Warn().Str("node_id", n.nodeID).Msg("emit before deployment is bound, dropping")
		return
	}

	for port, values := range portValues {
		for _, v := range values {
			if err := r.Emit(n.nodeID, port, v, n.invocation); err != nil {
				n.rt.logger.Warn().Err(err).Str("node_id", n.nodeID).Str("port", port).Msg("emit delivery failed")
			}
		}
	}
}

// Send enqueues message into handle's mailbox, locally or over the
// transport depending on where handle lives. Send never blocks and never
// returns an error to the caller (spec.md §4.8); failures are logged and
// surfaced only as a delivery-dropped event.
func (n *nodeOps) Send(handle types.WorkerHandle, message any) {
	if err := n.rt.send(handle, n.invocation, message); err != nil {
		n.rt.logger.Warn().Err(err).Str("worker_id", handle.ID).Msg("send failed")
		if n.rt.broker != nil {
			n.rt.broker.Publish(&events.Event{
				Type:     events.EventDeliveryDropped,
				Message:  err.Error(),
				Metadata: map[string]string{"node_id": n.nodeID},
			})
		}
	}
}

func (n *nodeOps) RemoteWorker(nodeSelector string, initialState any, tag string) (types.WorkerHandle, error) {
	addr, isLocal := n.rt.resolve(nodeSelector)
	if isLocal {
		return n.rt.newWorker(n.nodeID, initialState, tag)
	}

	c, err := n.rt.client(addr)
	if err != nil {
		return types.WorkerHandle{}, fmt.Errorf("runtime: dial %s for remote_worker: %w", addr, err)
	}
	return c.CreateRemoteWorker(n.nodeID, initialState, tag)
}

func (n *nodeOps) LocalWorker(initialState any, tag string) (types.WorkerHandle, error) {
	return n.rt.newWorker(n.nodeID, initialState, tag)
}

// send routes one message to handle, choosing between the local worker
// pool, an inbound stream this node is serving (handle lives on a node
// that dialed us), and an outbound client connection we own.
func (r *Runtime) send(handle types.WorkerHandle, invocation types.Invocation, message any) error {
	if handle.NodeAddr == "" || handle.NodeAddr == r.addr {
		return r.DeliverLocal(handle, invocation, message)
	}

	if r.server != nil {
		env := &transport.Envelope{
			Kind:          transport.KindWorkerMessage,
			WorkerMessage: &transport.WorkerMessage{Handle: handle, Invocation: invocation, Payload: message},
		}
		if err := r.server.Send(handle.NodeAddr, env); err == nil {
			return nil
		}
	}

	c, err := r.client(handle.NodeAddr)
	if err != nil {
		return &types.DeliveryError{Handle: handle, Reason: err.Error()}
	}
	return c.SendWorkerMessage(handle, invocation, message)
}
