package deploy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/deploy"
	"github.com/skitter-run/skitter/pkg/types"
)

func TestFlattenPassesThroughAWorkflowWithNoSubWorkflows(t *testing.T) {
	op := &types.Operation{Name: "identity", InPorts: []string{"in"}, OutPorts: []string{"out"}}
	wf := &types.Workflow{
		InPorts: []string{"start"},
		Nodes: map[string]*types.Node{
			"a": {ID: "a", Operation: op, Links: map[string][]types.Link{"out": {{Node: "b", Port: "in"}}}},
			"b": {ID: "b", Operation: op},
		},
		InPortLinks: map[string][]types.Link{"start": {{Node: "a", Port: "in"}}},
	}

	flat, err := deploy.Flatten(wf)
	require.NoError(t, err)
	require.Len(t, flat.Nodes, 2)
	require.Contains(t, flat.Nodes, "a")
	require.Contains(t, flat.Nodes, "b")
	require.Equal(t, []types.Link{{Node: "b", Port: "in"}}, flat.Nodes["a"].Links["out"])
	require.Equal(t, []types.Link{{Node: "a", Port: "in"}}, flat.InPortLinks["start"])
}

// TestFlattenRewritesInteriorNodesAsSiblings builds a single level of
// nesting: the top-level workflow is source -> wrapped -> sink, where
// wrapped is a SubWorkflow containing one interior node, double, that
// receives on its own in-port "in" and exits through its own out-port
// "out".
func TestFlattenRewritesInteriorNodesAsSiblings(t *testing.T) {
	op := &types.Operation{Name: "identity", InPorts: []string{"in"}, OutPorts: []string{"out"}}

	sub := &types.Workflow{
		InPorts:  []string{"in"},
		OutPorts: []string{"out"},
		Nodes: map[string]*types.Node{
			"double": {ID: "double", Operation: op, Links: map[string][]types.Link{"out": {{Node: "", Port: "out"}}}},
		},
		InPortLinks: map[string][]types.Link{"in": {{Node: "double", Port: "in"}}},
	}

	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {ID: "source", Operation: op, Links: map[string][]types.Link{"out": {{Node: "wrapped", Port: "in"}}}},
			"wrapped": {ID: "wrapped", SubWorkflow: sub, Links: map[string][]types.Link{
				"out": {{Node: "sink", Port: "in"}},
			}},
			"sink": {ID: "sink", Operation: op},
		},
	}

	flat, err := deploy.Flatten(wf)
	require.NoError(t, err)

	require.NotContains(t, flat.Nodes, "wrapped")
	require.Contains(t, flat.Nodes, "source")
	require.Contains(t, flat.Nodes, "sink")
	require.Contains(t, flat.Nodes, "wrapped/double")

	require.Equal(t, []types.Link{{Node: "wrapped/double", Port: "in"}}, flat.Nodes["source"].Links["out"])
	require.Equal(t, []types.Link{{Node: "sink", Port: "in"}}, flat.Nodes["wrapped/double"].Links["out"])
}

func TestFlattenRejectsExitWithNoEnclosingSubWorkflow(t *testing.T) {
	op := &types.Operation{Name: "identity", InPorts: []string{"in"}, OutPorts: []string{"out"}}
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"a": {ID: "a", Operation: op, Links: map[string][]types.Link{"out": {{Node: "", Port: "out"}}}},
		},
	}

	_, err := deploy.Flatten(wf)
	require.Error(t, err)
}

func TestFlattenResolvesNestedSubWorkflowOneLevelDeeper(t *testing.T) {
	op := &types.Operation{Name: "identity", InPorts: []string{"in"}, OutPorts: []string{"out"}}

	inner := &types.Workflow{
		InPorts:  []string{"in"},
		OutPorts: []string{"out"},
		Nodes: map[string]*types.Node{
			"triple": {ID: "triple", Operation: op, Links: map[string][]types.Link{"out": {{Node: "", Port: "out"}}}},
		},
		InPortLinks: map[string][]types.Link{"in": {{Node: "triple", Port: "in"}}},
	}

	outer := &types.Workflow{
		InPorts:  []string{"in"},
		OutPorts: []string{"out"},
		Nodes: map[string]*types.Node{
			"inner": {ID: "inner", SubWorkflow: inner, Links: map[string][]types.Link{"out": {{Node: "", Port: "out"}}}},
		},
		InPortLinks: map[string][]types.Link{"in": {{Node: "inner", Port: "in"}}},
	}

	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {ID: "source", Operation: op, Links: map[string][]types.Link{"out": {{Node: "outer", Port: "in"}}}},
			"outer":  {ID: "outer", SubWorkflow: outer, Links: map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}}},
			"sink":   {ID: "sink", Operation: op},
		},
	}

	flat, err := deploy.Flatten(wf)
	require.NoError(t, err)

	require.NotContains(t, flat.Nodes, "outer")
	require.NotContains(t, flat.Nodes, "outer/inner")
	require.Contains(t, flat.Nodes, "outer/inner/triple")

	require.Equal(t, []types.Link{{Node: "outer/inner/triple", Port: "in"}}, flat.Nodes["source"].Links["out"])
	require.Equal(t, []types.Link{{Node: "sink", Port: "in"}}, flat.Nodes["outer/inner/triple"].Links["out"])
}

func TestFlattenIsIdempotentOnAnAlreadyFlatWorkflow(t *testing.T) {
	op := &types.Operation{Name: "identity", InPorts: []string{"in"}, OutPorts: []string{"out"}}
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"a": {ID: "a", Operation: op},
		},
	}

	first, err := deploy.Flatten(wf)
	require.NoError(t, err)
	second, err := deploy.Flatten(first)
	require.NoError(t, err)
	require.Equal(t, first.Nodes, second.Nodes)
}
