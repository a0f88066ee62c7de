package strategies

import (
	"fmt"
	"sync/atomic"

	"github.com/skitter-run/skitter/pkg/types"
)

// replicaData is the deploy-time data frozen for a replica node: the
// handles of its N stateless workers, in deploy order.
type replicaData struct {
	Handles []types.WorkerHandle
}

// NewReplica builds a stateless, N-way round-robin fan-out strategy:
// every node instance is an independent copy of the same initial state,
// and each delivered value goes to exactly one replica, chosen in turn.
func NewReplica(n int) *types.Strategy {
	if n < 1 {
		n = 1
	}
	var next atomic.Uint64

	return &types.Strategy{
		Name: "replica",
		Deploy: func(ctx *types.Context) (any, error) {
			handles := make([]types.WorkerHandle, 0, n)
			for i := 0; i < n; i++ {
				handle, err := ctx.LocalWorker(ctx.InitialState(), "")
				if err != nil {
					return nil, fmt.Errorf("strategies: replica deploy worker %d: %w", i, err)
				}
				handles = append(handles, handle)
			}
			return &replicaData{Handles: handles}, nil
		},
		Deliver: func(ctx *types.Context, value any, inPort string) error {
			data, ok := ctx.Deployment().(*replicaData)
			if !ok || len(data.Handles) == 0 {
				return fmt.Errorf("strategies: replica node %q has no deployed workers", ctx.NodeID)
			}
			idx := next.Add(1) % uint64(len(data.Handles))
			ctx.Send(data.Handles[idx], value)
			return nil
		},
		Process: reactProcess,
	}
}
