package registry

import (
	"sort"
	"sync"

	"github.com/skitter-run/skitter/pkg/types"
)

// Registry is a process-scoped, concurrency-safe symbol -> descriptor map.
// The zero value is not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// New creates an empty Registry. Mode supervisors own its lifecycle: one
// Registry per process, constructed at startup and discarded at shutdown
// (spec.md §4.2, "no lifecycle beyond process lifetime").
func New() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Put registers value under name. It fails with *types.AlreadyDefined if
// name is already registered, so first-wins is deterministic regardless
// of call order.
func (r *Registry) Put(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return &types.AlreadyDefined{Name: name}
	}
	r.entries[name] = value
	return nil
}

// Get returns the descriptor registered under name, or *types.NotFound.
func (r *Registry) Get(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[name]
	if !ok {
		return nil, &types.NotFound{Name: name}
	}
	return v, nil
}

// List returns every registered name, sorted for deterministic output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetOperation is a typed convenience wrapper over Get.
func (r *Registry) GetOperation(name string) (*types.Operation, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	op, ok := v.(*types.Operation)
	if !ok {
		return nil, &types.NotFound{Name: name}
	}
	return op, nil
}

// GetStrategy is a typed convenience wrapper over Get.
func (r *Registry) GetStrategy(name string) (*types.Strategy, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*types.Strategy)
	if !ok {
		return nil, &types.NotFound{Name: name}
	}
	return s, nil
}

// WorkflowFactory is a zero-arg function returning a workflow to deploy,
// matching the `deploy` configuration option in spec.md §6.
type WorkflowFactory func() (*types.Workflow, error)

// GetWorkflowFactory is a typed convenience wrapper over Get, used to
// resolve the `--deploy NAME` CLI option and the `deploy` config key to a
// registered factory function.
func (r *Registry) GetWorkflowFactory(name string) (WorkflowFactory, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	f, ok := v.(WorkflowFactory)
	if !ok {
		return nil, &types.NotFound{Name: name}
	}
	return f, nil
}
