package strategies

import (
	"fmt"

	"github.com/skitter-run/skitter/pkg/types"
)

// singletonData is the deploy-time data frozen for a singleton node: the
// handle of its one worker.
type singletonData struct {
	Handle types.WorkerHandle
}

// NewSingleton builds the strategy backing spec.md §4's "exactly one
// worker" placement policy: one local worker per node, every delivered
// value sent straight to it.
func NewSingleton() *types.Strategy {
	return &types.Strategy{
		Name: "singleton",
		Deploy: func(ctx *types.Context) (any, error) {
			handle, err := ctx.LocalWorker(ctx.InitialState(), "")
			if err != nil {
				return nil, fmt.Errorf("strategies: singleton deploy: %w", err)
			}
			return &singletonData{Handle: handle}, nil
		},
		Deliver: func(ctx *types.Context, value any, inPort string) error {
			data, ok := ctx.Deployment().(*singletonData)
			if !ok || data.Handle.IsZero() {
				return fmt.Errorf("strategies: singleton node %q has no deployed worker", ctx.NodeID)
			}
			ctx.Send(data.Handle, value)
			return nil
		},
		Process: reactProcess,
	}
}
