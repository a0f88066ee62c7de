package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/supervisor"
	"github.com/skitter-run/skitter/pkg/types"
)

func identityWorkflow(sink *[]any) *types.Workflow {
	source := &types.Operation{Name: "source", OutPorts: []string{"out"}}
	sourceStrategy := &types.Strategy{
		Name:    "singleton",
		Deploy:  func(ctx *types.Context) (any, error) { return nil, nil },
		Deliver: func(ctx *types.Context, value any, inPort string) error { return nil },
		Process: func(ctx *types.Context, message any, state any, tag string) (any, error) { return state, nil },
	}

	sinkOp := &types.Operation{Name: "sink", InPorts: []string{"in"}}
	sinkStrategy := &types.Strategy{
		Name:   "singleton",
		Deploy: func(ctx *types.Context) (any, error) { return nil, nil },
		Deliver: func(ctx *types.Context, value any, inPort string) error {
			*sink = append(*sink, value)
			return nil
		},
		Process: func(ctx *types.Context, message any, state any, tag string) (any, error) { return state, nil },
	}

	return &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {ID: "source", Operation: source, Strategy: sourceStrategy, Links: map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}}},
			"sink":   {ID: "sink", Operation: sinkOp, Strategy: sinkStrategy},
		},
	}
}

func TestLocalDeployEmitsThroughToSink(t *testing.T) {
	var sink []any
	wf := identityWorkflow(&sink)

	local := supervisor.NewLocal(supervisor.LocalConfig{Addr: "local-1"})
	require.NoError(t, local.Deploy(wf))

	ops := local.Runtime().OpsFor("source", "inv-1")
	ops.Emit(map[string][]any{"out": {"a", "b"}})

	require.Equal(t, []any{"a", "b"}, sink)

	require.NoError(t, local.Undeploy())
}

func TestLocalRunDeploysFromFactoryAndStopsOnContextCancel(t *testing.T) {
	var sink []any
	called := false
	factory := func() (*types.Workflow, error) {
		called = true
		return identityWorkflow(&sink), nil
	}

	local := supervisor.NewLocal(supervisor.LocalConfig{Addr: "local-2", Deploy: factory})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	code, err := local.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, supervisor.ExitNormal, code)
	require.True(t, called)
}

func TestLocalUndeployWithNoDeploymentIsANoOp(t *testing.T) {
	local := supervisor.NewLocal(supervisor.LocalConfig{Addr: "local-3"})
	require.NoError(t, local.Undeploy())
}
