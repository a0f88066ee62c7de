package deploy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

// Engine is the C6 deployment engine.
type Engine struct {
	broker *events.Broker
	logger zerolog.Logger
}

// New constructs a deployment Engine. broker may be nil.
func New(broker *events.Broker) *Engine {
	return &Engine{broker: broker, logger: log.WithComponent("deploy")}
}

// Deploy flattens workflow's sub-workflow nodes, validates the result,
// topologically sorts its nodes and invokes each node's strategy Deploy
// hook in order (spec.md §4.6). On success it returns the frozen
// Deployment mapping node id to deploy data. On failure it undeploys every
// node already deployed, in reverse order, before returning the error.
// factory supplies each node's own Ops so a hook's call/remote_worker/
// local_worker operators dispatch against that node's Operation rather
// than some other node's; factory may be nil in tests that never exercise
// those operators.
func (e *Engine) Deploy(workflow *types.Workflow, factory types.OpsFactory) (*types.Deployment, error) {
	flat, err := Flatten(workflow)
	if err != nil {
		return nil, err
	}
	workflow = flat

	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	order, err := topoSort(workflow)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	e.publish(events.EventDeployStarted, "deployment started", "")

	data := make(map[string]any, len(order))
	var deployed []string

	for _, nodeID := range order {
		node := workflow.Nodes[nodeID]
		strategy := node.EffectiveStrategy()

		ctx := types.NewContext(nodeID, node.Operation, node.Args, nil, types.Invocation(""), opsFor(factory, nodeID, ""))
		result, err := strategy.Deploy(ctx)
		if err != nil {
			deployErr := &types.DeployError{NodeID: nodeID, Err: err}
			e.logger.Error().Err(err).Str("node_id", nodeID).Msg("deploy hook failed, rolling back")
			e.publish(events.EventDeployFailed, deployErr.Error(), nodeID)
			e.rollback(workflow, deployed, data, factory)
			return nil, deployErr
		}

		data[nodeID] = result
		deployed = append(deployed, nodeID)
		e.logger.Debug().Str("node_id", nodeID).Msg("node deployed")
	}

	e.publishDuration(events.EventDeployed, "deployment succeeded", time.Since(start))
	return types.NewDeployment(data), nil
}

// Undeploy tears down every node in deployment, in reverse topological
// order, invoking each node's optional Undeploy hook. workflow is flattened
// the same way Deploy flattens it, so node ids match deployment's keys.
func (e *Engine) Undeploy(workflow *types.Workflow, deployment *types.Deployment, factory types.OpsFactory) error {
	flat, err := Flatten(workflow)
	if err != nil {
		return err
	}
	workflow = flat

	order, err := topoSort(workflow)
	if err != nil {
		return err
	}
	data := make(map[string]any, len(order))
	for _, id := range order {
		data[id] = deployment.Get(id)
	}
	e.rollback(workflow, order, data, factory)
	return nil
}

// rollback undeploys nodeIDs in reverse order, logging but not failing on
// individual undeploy hook errors: a failure to undeploy one node must
// not stop the others from being torn down.
func (e *Engine) rollback(workflow *types.Workflow, nodeIDs []string, data map[string]any, factory types.OpsFactory) {
	for i := len(nodeIDs) - 1; i >= 0; i-- {
		nodeID := nodeIDs[i]
		node := workflow.Nodes[nodeID]
		strategy := node.EffectiveStrategy()
		if strategy == nil || strategy.Undeploy == nil {
			continue
		}

		ctx := types.NewContext(nodeID, node.Operation, node.Args, nil, types.Invocation(""), opsFor(factory, nodeID, ""))
		if err := strategy.Undeploy(ctx, data[nodeID]); err != nil {
			e.logger.Error().Err(err).Str("node_id", nodeID).Msg("undeploy hook failed")
			continue
		}
		e.publish(events.EventUndeployed, "node undeployed", nodeID)
	}
}

func opsFor(factory types.OpsFactory, nodeID string, invocation types.Invocation) types.Ops {
	if factory == nil {
		return nil
	}
	return factory.OpsFor(nodeID, invocation)
}

func (e *Engine) publish(t events.EventType, msg, nodeID string) {
	if e.broker == nil {
		return
	}
	meta := map[string]string{}
	if nodeID != "" {
		meta["node_id"] = nodeID
	}
	e.broker.Publish(&events.Event{Type: t, Message: msg, Metadata: meta})
}

// publishDuration publishes t with the elapsed deploy time attached, so
// a metrics collector subscribed to the broker can observe a deployment
// duration histogram without its own (necessarily imprecise) timer.
func (e *Engine) publishDuration(t events.EventType, msg string, elapsed time.Duration) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		Type:    t,
		Message: msg,
		Metadata: map[string]string{
			"duration_seconds": strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64),
		},
	})
}

// topoSort returns workflow's node ids in dependency order (a node's
// upstream sources before the node itself), via Kahn's algorithm over the
// node-to-node link graph. workflow.Validate rejects cycles, so an error
// here indicates validation was skipped.
func topoSort(workflow *types.Workflow) ([]string, error) {
	inDegree := make(map[string]int, len(workflow.Nodes))
	adj := make(map[string][]string, len(workflow.Nodes))
	for id := range workflow.Nodes {
		inDegree[id] = 0
	}

	for id, node := range workflow.Nodes {
		for _, dests := range node.Links {
			for _, dest := range dests {
				if _, ok := workflow.Nodes[dest.Node]; !ok {
					continue
				}
				adj[id] = append(adj[id], dest.Node)
				inDegree[dest.Node]++
			}
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		// Deterministic order: always take the lexicographically smallest
		// ready node rather than relying on map iteration order.
		idx := smallestIndex(queue)
		id := queue[idx]
		queue = append(queue[:idx], queue[idx+1:]...)
		order = append(order, id)

		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(workflow.Nodes) {
		return nil, fmt.Errorf("deploy: workflow graph has a cycle")
	}
	return order, nil
}

func smallestIndex(ids []string) int {
	best := 0
	for i := 1; i < len(ids); i++ {
		if ids[i] < ids[best] {
			best = i
		}
	}
	return best
}
