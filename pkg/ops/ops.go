package ops

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

func reactCallback(cb types.CallbackFunc, read, write, emit bool) map[types.CallbackKey]*types.Callback {
	return map[types.CallbackKey]*types.Callback{
		{Name: "react", Arity: 1}: {Name: "react", Arity: 1, Fn: cb, Read: read, Write: write, Emit: emit},
	}
}

// NewStreamSource builds a source operation with no in-ports and no
// callbacks: the node exists purely so its strategy can place a worker,
// and a driver (a test, the `deploy` CLI subcommand, a worker_down
// reaction) feeds it values directly via its node's Ops.Emit, the same
// pattern spec.md §4.4's "zero in-port node" edge case describes.
func NewStreamSource(name, outPort string) *types.Operation {
	return &types.Operation{Name: name, OutPorts: []string{outPort}}
}

// NewMap builds a stateless transform operation: react(v) emits fn(v) on
// "out" and never touches state.
func NewMap(name string, fn func(any) any) *types.Operation {
	return &types.Operation{
		Name: name, InPorts: []string{"in"}, OutPorts: []string{"out"},
		Callbacks: reactCallback(func(state, config any, args []any) types.CallbackResult {
			return types.CallbackResult{State: state, Emits: map[string][]any{"out": {fn(args[0])}}}
		}, false, false, true),
	}
}

// NewFlatMap builds react(v), emitting every element fn(v) returns, in
// order, on "out". A fn that returns nothing drops the value silently.
func NewFlatMap(name string, fn func(any) []any) *types.Operation {
	return &types.Operation{
		Name: name, InPorts: []string{"in"}, OutPorts: []string{"out"},
		Callbacks: reactCallback(func(state, config any, args []any) types.CallbackResult {
			out := fn(args[0])
			if len(out) == 0 {
				return types.CallbackResult{State: state}
			}
			return types.CallbackResult{State: state, Emits: map[string][]any{"out": out}}
		}, false, false, true),
	}
}

// NewFilter builds react(v), re-emitting v on "out" only when pred(v)
// holds; otherwise it is dropped.
func NewFilter(name string, pred func(any) bool) *types.Operation {
	return &types.Operation{
		Name: name, InPorts: []string{"in"}, OutPorts: []string{"out"},
		Callbacks: reactCallback(func(state, config any, args []any) types.CallbackResult {
			if !pred(args[0]) {
				return types.CallbackResult{State: state}
			}
			return types.CallbackResult{State: state, Emits: map[string][]any{"out": {args[0]}}}
		}, false, false, true),
	}
}

// NewCount builds the spec.md §8 keyed-counter operation: initial_state
// 0, react(v) bumps the count and emits [value, count] on "out".
func NewCount(name string) *types.Operation {
	return &types.Operation{
		Name: name, InPorts: []string{"in"}, OutPorts: []string{"out"}, InitialState: 0,
		Callbacks: reactCallback(func(state, config any, args []any) types.CallbackResult {
			n := state.(int) + 1
			return types.CallbackResult{
				Result: n, State: n,
				Emits: map[string][]any{"out": {[2]any{args[0], n}}},
			}
		}, true, true, true),
	}
}

// NewPrint builds a sink operation: react(v) writes v to w and emits
// nothing. A nil w writes through the component's zerolog logger instead,
// the way the rest of the ambient stack reports node activity.
func NewPrint(name string, w io.Writer) *types.Operation {
	var logger zerolog.Logger
	if w == nil {
		logger = log.WithComponent("ops.print")
	}

	return &types.Operation{
		Name: name, InPorts: []string{"in"},
		Callbacks: reactCallback(func(state, config any, args []any) types.CallbackResult {
			if w != nil {
				_, _ = io.WriteString(w, sprintValue(args[0])+"\n")
			} else {
				logger.Info().Interface("value", args[0]).Msg("print")
			}
			return types.CallbackResult{State: state}
		}, false, false, false),
	}
}

func sprintValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
