package strategies_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/deploy"
	"github.com/skitter-run/skitter/pkg/runtime"
	"github.com/skitter-run/skitter/pkg/strategies"
	"github.com/skitter-run/skitter/pkg/types"
)

const (
	waitFor  = time.Second
	tickWait = 10 * time.Millisecond
)

// countOperation is the spec's keyed-counter example: react(w) bumps a
// per-worker counter and emits the (word, count) pair it just produced.
func countOperation() *types.Operation {
	return &types.Operation{
		Name:         "Count",
		InPorts:      []string{"in"},
		OutPorts:     []string{"out"},
		InitialState: 0,
		Callbacks: map[types.CallbackKey]*types.Callback{
			{Name: "react", Arity: 1}: {
				Name: "react", Arity: 1, Read: true, Write: true, Emit: true,
				Fn: func(state, config any, args []any) types.CallbackResult {
					n := state.(int) + 1
					word := args[0].(string)
					return types.CallbackResult{
						Result: n,
						State:  n,
						Emits:  map[string][]any{"out": {[2]any{word, n}}},
					}
				},
			},
		},
	}
}

// runningSumOperation emits the accumulated total after every message, so
// a test can observe a singleton worker's state evolving without reaching
// into the strategy's private deployment data.
func runningSumOperation() *types.Operation {
	return &types.Operation{
		Name:         "sum",
		InPorts:      []string{"in"},
		OutPorts:     []string{"out"},
		InitialState: 0,
		Callbacks: map[types.CallbackKey]*types.Callback{
			{Name: "react", Arity: 1}: {
				Name: "react", Arity: 1, Read: true, Write: true, Emit: true,
				Fn: func(state, config any, args []any) types.CallbackResult {
					n := state.(int) + args[0].(int)
					return types.CallbackResult{State: n, Emits: map[string][]any{"out": {n}}}
				},
			},
		},
	}
}

func echoOperation() *types.Operation {
	return &types.Operation{
		Name: "echo", InPorts: []string{"in"}, OutPorts: []string{"out"},
		Callbacks: map[types.CallbackKey]*types.Callback{
			{Name: "react", Arity: 1}: {
				Name: "react", Arity: 1, Emit: true,
				Fn: func(state, config any, args []any) types.CallbackResult {
					return types.CallbackResult{State: state, Emits: map[string][]any{"out": {args[0]}}}
				},
			},
		},
	}
}

func sinkCollector(mu *sync.Mutex, seen *[]any) *types.Strategy {
	return &types.Strategy{
		Name:   "singleton",
		Deploy: func(ctx *types.Context) (any, error) { return nil, nil },
		Deliver: func(ctx *types.Context, value any, inPort string) error {
			mu.Lock()
			*seen = append(*seen, value)
			mu.Unlock()
			return nil
		},
		Process: func(ctx *types.Context, message any, state any, tag string) (any, error) { return state, nil },
	}
}

func deployAndBind(t *testing.T, rt *runtime.Runtime, wf *types.Workflow) *types.Deployment {
	t.Helper()
	rt.Bind(wf, types.NewDeployment(nil))
	deployment, err := deploy.New(nil).Deploy(wf, rt)
	require.NoError(t, err)
	rt.Bind(wf, deployment)
	return deployment
}

func TestKeyedStrategyPartitionsStatePerKey(t *testing.T) {
	var mu sync.Mutex
	var seen []any

	sourceOp := &types.Operation{Name: "words", OutPorts: []string{"out"}}
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {
				ID: "source", Operation: sourceOp, Strategy: strategies.NewSingleton(),
				Links: map[string][]types.Link{"out": {{Node: "count", Port: "in"}}},
			},
			"count": {
				ID: "count", Operation: countOperation(), Strategy: strategies.NewKeyed(4, nil),
				Links: map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}},
			},
			"sink": {ID: "sink", Operation: &types.Operation{Name: "sink", InPorts: []string{"in"}}, Strategy: sinkCollector(&mu, &seen)},
		},
	}

	rt := runtime.New(runtime.Config{Addr: "local"})
	deployAndBind(t, rt, wf)

	ops := rt.OpsFor("source", "inv-1")
	for _, w := range []string{"x", "y", "x", "x", "y", "z"} {
		ops.Emit(map[string][]any{"out": {w}})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 6
	}, waitFor, tickWait)

	final := map[string]int{}
	mu.Lock()
	for _, v := range seen {
		pair := v.([2]any)
		final[pair[0].(string)] = pair[1].(int)
	}
	mu.Unlock()

	require.Equal(t, map[string]int{"x": 3, "y": 2, "z": 1}, final)
}

func TestReplicaStrategyFansOutAcrossWorkers(t *testing.T) {
	var mu sync.Mutex
	var seen []any
	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {
				ID: "source", Operation: &types.Operation{Name: "src", OutPorts: []string{"out"}}, Strategy: strategies.NewSingleton(),
				Links: map[string][]types.Link{"out": {{Node: "echo", Port: "in"}}},
			},
			"echo": {
				ID: "echo", Operation: echoOperation(), Strategy: strategies.NewReplica(3),
				Links: map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}},
			},
			"sink": {ID: "sink", Operation: &types.Operation{Name: "sink", InPorts: []string{"in"}}, Strategy: sinkCollector(&mu, &seen)},
		},
	}

	rt := runtime.New(runtime.Config{Addr: "local"})
	deployAndBind(t, rt, wf)

	ops := rt.OpsFor("source", "inv-1")
	for i := 0; i < 9; i++ {
		ops.Emit(map[string][]any{"out": {i}})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 9
	}, waitFor, tickWait)

	var got []int
	mu.Lock()
	for _, v := range seen {
		got = append(got, v.(int))
	}
	mu.Unlock()
	sort.Ints(got)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestSingletonStrategySerializesAllMessagesOnOneWorker(t *testing.T) {
	var mu sync.Mutex
	var seen []any

	wf := &types.Workflow{
		Nodes: map[string]*types.Node{
			"source": {
				ID: "source", Operation: &types.Operation{Name: "src", OutPorts: []string{"out"}}, Strategy: strategies.NewSingleton(),
				Links: map[string][]types.Link{"out": {{Node: "sum", Port: "in"}}},
			},
			"sum": {
				ID: "sum", Operation: runningSumOperation(), Strategy: strategies.NewSingleton(),
				Links: map[string][]types.Link{"out": {{Node: "sink", Port: "in"}}},
			},
			"sink": {ID: "sink", Operation: &types.Operation{Name: "sink", InPorts: []string{"in"}}, Strategy: sinkCollector(&mu, &seen)},
		},
	}

	rt := runtime.New(runtime.Config{Addr: "local"})
	deployAndBind(t, rt, wf)

	ops := rt.OpsFor("source", "inv-1")
	for _, n := range []int{1, 2, 3, 4} {
		ops.Emit(map[string][]any{"out": {n}})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, waitFor, tickWait)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []any{1, 3, 6, 10}, seen)
}
