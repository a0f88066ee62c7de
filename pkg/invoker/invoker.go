package invoker

import (
	"github.com/skitter-run/skitter/pkg/metrics"
	"github.com/skitter-run/skitter/pkg/types"
)

// Call runs operation's callback named name with the given arity, state,
// config and args, and returns its result triple (spec.md §4.3).
//
// If state is nil, the operation's initial state is substituted. If no
// callback with (name, arity) exists, Call returns *types.UnknownCallback.
func Call(op *types.Operation, name string, arity int, state, config any, args []any) (types.CallbackResult, error) {
	cb, ok := op.Callback(name, arity)
	if !ok {
		return types.CallbackResult{}, &types.UnknownCallback{
			Operation: op.Name,
			Name:      name,
			Arity:     arity,
		}
	}

	if state == nil {
		state = op.InitialState
	}

	timer := metrics.NewTimer()
	result := cb.Fn(state, config, args)
	timer.ObserveDurationVec(metrics.CallbackDuration, op.Name, name)
	metrics.CallbackInvocationsTotal.WithLabelValues(op.Name, name).Inc()

	return result, nil
}

// CallIfExists is Call, but returns a zero-value, no-op result instead of
// *types.UnknownCallback when the callback is missing (spec.md §4.3,
// "a convenience call_if_exists returns a nil-result instead").
func CallIfExists(op *types.Operation, name string, arity int, state, config any, args []any) types.CallbackResult {
	if _, ok := op.Callback(name, arity); !ok {
		return types.CallbackResult{State: state}
	}

	result, _ := Call(op, name, arity, state, config, args)
	return result
}
