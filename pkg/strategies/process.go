package strategies

import "github.com/skitter-run/skitter/pkg/types"

// reactProcess is the process hook shared by every built-in strategy: run
// the node's "react" callback with the delivered message, forward its
// emits to the router, and adopt its returned state (spec.md §4.3's
// call/state/emit contract).
func reactProcess(ctx *types.Context, message any, state any, tag string) (any, error) {
	result, err := ctx.CallFull("react", state, nil, []any{message})
	if err != nil {
		return state, err
	}
	if len(result.Emits) > 0 {
		ctx.Emit(result.Emits)
	}
	return result.State, nil
}
