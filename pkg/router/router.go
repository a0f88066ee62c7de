package router

import (
	"fmt"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

// Router is the C7 component. It holds no mutable per-message state: one
// Router instance routes every emit for the workflow it was built from.
type Router struct {
	workflow   *types.Workflow
	deployment *types.Deployment
	factory    types.OpsFactory
	broker     *events.Broker
}

// New constructs a Router bound to one workflow/deployment pair. factory
// supplies each destination node's own Ops, since a fan-out emit may reach
// several nodes with different Operations in a single call (factory may
// be nil in tests whose deliver hooks never use call/remote_worker/
// local_worker).
func New(workflow *types.Workflow, deployment *types.Deployment, factory types.OpsFactory, broker *events.Broker) *Router {
	return &Router{workflow: workflow, deployment: deployment, factory: factory, broker: broker}
}

// Emit fans a value emitted on sourceNode's outPort out to every Link
// registered for it, invoking each destination's DeliverHook. An outPort
// with no Links drops the value silently (spec.md §4.6).
func (r *Router) Emit(sourceNode, outPort string, value any, invocation types.Invocation) error {
	node, ok := r.workflow.Nodes[sourceNode]
	if !ok {
		return fmt.Errorf("router: unknown source node %q", sourceNode)
	}

	links := node.Links[outPort]
	if len(links) == 0 {
		r.dropped(sourceNode, outPort)
		return nil
	}

	return r.deliverAll(links, value, invocation)
}

// DeliverToWorkflow fans a value presented at the workflow's external
// in-port inPort out to every Link the workflow registers for it
// (spec.md §3's InPortLinks).
func (r *Router) DeliverToWorkflow(inPort string, value any, invocation types.Invocation) error {
	links := r.workflow.InPortLinks[inPort]
	if len(links) == 0 {
		r.dropped("<workflow>", inPort)
		return nil
	}

	return r.deliverAll(links, value, invocation)
}

func (r *Router) deliverAll(links []types.Link, value any, invocation types.Invocation) error {
	var firstErr error
	for _, link := range links {
		dest, ok := r.workflow.Nodes[link.Node]
		if !ok {
			firstErr = recordFirst(firstErr, fmt.Errorf("router: link targets unknown node %q", link.Node))
			continue
		}

		strategy := dest.EffectiveStrategy()
		if strategy == nil || strategy.Deliver == nil {
			firstErr = recordFirst(firstErr, fmt.Errorf("router: node %q has no deliver hook", link.Node))
			continue
		}

		var ops types.Ops
		if r.factory != nil {
			ops = r.factory.OpsFor(link.Node, invocation)
		}
		ctx := types.NewContext(link.Node, dest.Operation, dest.Args, r.deployment, invocation, ops)
		if err := strategy.Deliver(ctx, value, link.Port); err != nil {
			log.WithComponent("router").Error().Err(err).
				Str("node_id", link.Node).Str("port", link.Port).
				Msg("deliver hook failed")
			firstErr = recordFirst(firstErr, err)
			continue
		}
	}
	return firstErr
}

func (r *Router) dropped(sourceNode, port string) {
	log.WithComponent("router").Debug().
		Str("node_id", sourceNode).Str("port", port).
		Msg("emit dropped: no connected destination")

	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:    events.EventDeliveryDropped,
		Message: fmt.Sprintf("no destination for %s.%s", sourceNode, port),
		Metadata: map[string]string{
			"node_id": sourceNode,
			"port":    port,
		},
	})
}

func recordFirst(existing, err error) error {
	if existing != nil {
		return existing
	}
	return err
}
