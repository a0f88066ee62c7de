package main

import (
	"github.com/skitter-run/skitter/pkg/ops"
	"github.com/skitter-run/skitter/pkg/registry"
	"github.com/skitter-run/skitter/pkg/strategies"
	"github.com/skitter-run/skitter/pkg/types"
)

func init() {
	must(examples.Put("identity", registry.WorkflowFactory(identityWorkflow)))
	must(examples.Put("counter", registry.WorkflowFactory(counterWorkflow)))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// identityWorkflow is spec.md §8 scenario 1: a source feeding a sink
// through one singleton worker each, values passing through unchanged.
func identityWorkflow() (*types.Workflow, error) {
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {
				ID:        "source",
				Operation: ops.NewStreamSource("source", "out"),
				Strategy:  strategies.NewSingleton(),
				Links:     map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}},
			},
			"sink": {
				ID:        "sink",
				Operation: ops.NewPrint("sink", nil),
				Strategy:  strategies.NewSingleton(),
			},
		},
	}
	return wf, wf.Validate()
}

// counterWorkflow is spec.md §8 scenario 2: a keyed counter partitioned
// across 4 workers by value identity, counting occurrences per key before
// printing the (value, count) pair.
func counterWorkflow() (*types.Workflow, error) {
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {
				ID:        "source",
				Operation: ops.NewStreamSource("source", "out"),
				Strategy:  strategies.NewSingleton(),
				Links:     map[string][]types.Link{"out": {{Node: "count", Port: "in"}}},
			},
			"count": {
				ID:        "count",
				Operation: ops.NewCount("count"),
				Strategy:  strategies.NewKeyed(4, nil),
				Links:     map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}},
			},
			"sink": {
				ID:        "sink",
				Operation: ops.NewPrint("sink", nil),
				Strategy:  strategies.NewSingleton(),
			},
		},
	}
	return wf, wf.Validate()
}
