package strategies

import (
	"fmt"
	"hash/fnv"

	"github.com/skitter-run/skitter/pkg/types"
)

// keyedData is the deploy-time data frozen for a keyed node: the handles
// of its N partition workers, in deploy order.
type keyedData struct {
	Handles []types.WorkerHandle
}

// KeyFunc extracts the partition key from a value arriving at a keyed
// node. The default, used when NewKeyed is called with a nil KeyFunc,
// treats the value itself as the key via fmt.Sprint.
type KeyFunc func(value any) string

// NewKeyed builds the strategy backing spec.md §8's keyed-counter
// scenario: N workers, each delivered value routed by a deterministic
// hash of its key so that every value for the same key always reaches
// the same worker and sees that worker's isolated state.
func NewKeyed(n int, key KeyFunc) *types.Strategy {
	if n < 1 {
		n = 1
	}
	if key == nil {
		key = func(value any) string { return fmt.Sprint(value) }
	}

	return &types.Strategy{
		Name: "keyed",
		Deploy: func(ctx *types.Context) (any, error) {
			handles := make([]types.WorkerHandle, 0, n)
			for i := 0; i < n; i++ {
				handle, err := ctx.LocalWorker(ctx.InitialState(), "")
				if err != nil {
					return nil, fmt.Errorf("strategies: keyed deploy worker %d: %w", i, err)
				}
				handles = append(handles, handle)
			}
			return &keyedData{Handles: handles}, nil
		},
		Deliver: func(ctx *types.Context, value any, inPort string) error {
			data, ok := ctx.Deployment().(*keyedData)
			if !ok || len(data.Handles) == 0 {
				return fmt.Errorf("strategies: keyed node %q has no deployed workers", ctx.NodeID)
			}
			idx := partition(key(value), len(data.Handles))
			ctx.Send(data.Handles[idx], value)
			return nil
		},
		Process: reactProcess,
	}
}

// partition hashes key with fnv-32a and reduces it mod n: a plain
// hash-mod-n assignment, deterministic for a given n, not a
// consistent-hashing ring.
func partition(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
