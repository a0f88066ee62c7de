package invoker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/invoker"
	"github.com/skitter-run/skitter/pkg/types"
)

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
					return types.CallbackResult{
						Result: n,
						State:  n,
						Emits:  map[string][]any{"out": {n}},
					}
				},
			},
			{Name: "peek", Arity: 0}: {
				Name: "peek", Arity: 0, Read: true,
				Fn: func(state, config any, args []any) types.CallbackResult {
					return types.CallbackResult{Result: state, State: state}
				},
			},
		},
	}
}

func TestCallUsesInitialStateWhenNil(t *testing.T) {
	op := countOperation()
	res, err := invoker.Call(op, "react", 1, nil, nil, []any{"x"})
	require.NoError(t, err)
	require.Equal(t, 1, res.State)
	require.Equal(t, []any{1}, res.Emits["out"])
}

func TestCallThreadsExplicitState(t *testing.T) {
	op := countOperation()
	res, err := invoker.Call(op, "react", 1, 5, nil, []any{"x"})
	require.NoError(t, err)
	require.Equal(t, 6, res.State)
}

func TestCallUnknownCallback(t *testing.T) {
	op := countOperation()
	_, err := invoker.Call(op, "missing", 1, nil, nil, nil)
	require.Error(t, err)
	var unknown *types.UnknownCallback
	require.ErrorAs(t, err, &unknown)
}

func TestCallIfExistsMissingIsNoOp(t *testing.T) {
	op := countOperation()
	res := invoker.CallIfExists(op, "missing", 1, 7, nil, nil)
	require.Equal(t, 7, res.State)
	require.Nil(t, res.Emits)
}

func TestReadOnlyCallbackDoesNotChangeState(t *testing.T) {
	op := countOperation()
	res, err := invoker.Call(op, "peek", 0, 9, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 9, res.State)
	require.Empty(t, res.Emits)
}
