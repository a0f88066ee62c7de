package types

// CallbackKey identifies a callback by name and arity, matching the
// "(name, arity) -> Callback" mapping in spec.md §3.
type CallbackKey struct {
	Name  string
	Arity int
}

// CallbackResult is the triple a callback invocation produces: the return
// value visible to the caller, the (possibly unchanged) new state, and any
// values enqueued on out-ports, preserving insertion order per port.
type CallbackResult struct {
	Result any
	State  any
	Emits  map[string][]any
}

// CallbackFunc is the pure function body of a Callback: (state, config,
// args) -> result triple. It must never block, suspend or schedule work
// (spec.md §4.3).
type CallbackFunc func(state any, config any, args []any) CallbackResult

// Callback is one named, pure operation function plus the static flags a
// deployment engine or strategy may use to short-circuit work: Read/Write
// describe whether the body reads or mutates state, Emit describes whether
// it ever populates Emits.
type Callback struct {
	Name  string
	Arity int
	Fn    CallbackFunc
	Read  bool
	Write bool
	Emit  bool
}

// Operation is the immutable descriptor for a data-processing node body:
// its ports, its initial state, and its named callbacks (spec.md §3).
type Operation struct {
	Name            string
	InPorts         []string
	OutPorts        []string
	InitialState    any
	StateStruct     map[string]any
	DefaultStrategy *Strategy
	Callbacks       map[CallbackKey]*Callback
}

// Callback looks up a callback by name and arity.
func (o *Operation) Callback(name string, arity int) (*Callback, bool) {
	if o == nil || o.Callbacks == nil {
		return nil, false
	}
	cb, ok := o.Callbacks[CallbackKey{Name: name, Arity: arity}]
	return cb, ok
}

// HasInPort reports whether name appears among the operation's in-ports.
func (o *Operation) HasInPort(name string) bool {
	return containsString(o.InPorts, name)
}

// HasOutPort reports whether name appears among the operation's out-ports.
func (o *Operation) HasOutPort(name string) bool {
	return containsString(o.OutPorts, name)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Ops is the set of strategy-runtime operators a Context exposes inside a
// hook body (spec.md §4.8). It is implemented by pkg/runtime; types does
// not depend on runtime, so Context only ever sees it through this
// interface, avoiding an import cycle.
type Ops interface {
	Call(cbName string, args []any) (CallbackResult, error)
	CallFull(cbName string, state, config any, args []any) (CallbackResult, error)
	CallIfExists(cbName string, state, config any, args []any) (CallbackResult, error)
	Emit(portValues map[string][]any)
	Send(handle WorkerHandle, message any)
	RemoteWorker(nodeSelector string, initialState any, tag string) (WorkerHandle, error)
	LocalWorker(initialState any, tag string) (WorkerHandle, error)
}

// OpsFactory produces the Ops implementation bound to one (node, invocation)
// pair. Deploy and deliver hooks run over many nodes in a single walk, and
// each node's call/remote_worker/local_worker operators must dispatch
// against that node's own Operation, so the deployment engine and the
// emit router ask for a fresh Ops per node rather than sharing one across
// the whole walk (spec.md §4.8). pkg/runtime is the only implementer.
type OpsFactory interface {
	OpsFor(nodeID string, invocation Invocation) Ops
}

// DeployHook instantiates a node's workers across the cluster and returns
// opaque deployment data to be frozen into the Deployment.
type DeployHook func(ctx *Context) (any, error)

// UndeployHook reverses a DeployHook; it is optional.
type UndeployHook func(ctx *Context, deploymentData any) error

// DeliverHook decides which worker(s) should receive one emitted value on
// one in-port of the destination node. It may drop the value.
type DeliverHook func(ctx *Context, value any, inPort string) error

// ProcessHook runs inside a worker for every message delivered to it, in
// arrival order, and returns the worker's new state.
type ProcessHook func(ctx *Context, message any, state any, tag string) (any, error)

// WorkerDownHook is an optional reaction to a crashed worker belonging to
// this node; without it the worker simply stays down (spec.md §4.4).
type WorkerDownHook func(ctx *Context, handle WorkerHandle) error

// Strategy is the immutable distribution-policy descriptor: placement,
// replication, routing and restoration for one node (spec.md §3).
type Strategy struct {
	Name       string
	Deploy     DeployHook
	Deliver    DeliverHook
	Process    ProcessHook
	Undeploy   UndeployHook
	WorkerDown WorkerDownHook
}

// MissingHooks returns the names of the required hooks (deploy, deliver,
// process) that are nil, per spec.md §3 ("missing ones trigger deploy-time
// error").
func (s *Strategy) MissingHooks() []string {
	if s == nil {
		return []string{"deploy", "deliver", "process"}
	}
	var missing []string
	if s.Deploy == nil {
		missing = append(missing, "deploy")
	}
	if s.Deliver == nil {
		missing = append(missing, "deliver")
	}
	if s.Process == nil {
		missing = append(missing, "process")
	}
	return missing
}

// Link is one destination of an emitted value: a node id and the in-port
// on that node.
type Link struct {
	Node string
	Port string
}

// Node is one occurrence of an operation inside a workflow (spec.md §3).
// Exactly one of Operation or SubWorkflow is set before flattening;
// pkg/deploy.Flatten resolves every SubWorkflow node into plain sibling
// nodes before a workflow reaches Validate or the deployment engine.
type Node struct {
	ID          string
	Operation   *Operation
	Args        any
	Strategy    *Strategy
	Links       map[string][]Link // out-port -> destinations
	SubWorkflow *Workflow         // set only before flattening
}

// Workflow is the immutable, validated directed graph of nodes a
// deployment engine consumes (spec.md §3). InPortLinks routes a value
// arriving on a workflow-level in-port to interior nodes, the same way a
// Node's Links route an emitted out-port value; OutPorts are purely
// nominal here since emitted values that reach a workflow boundary are
// simply not re-routed (spec.md §4.7, "for workflow-level out-ports with
// no downstream nodes, the value is dropped silently").
type Workflow struct {
	InPorts     []string
	OutPorts    []string
	Nodes       map[string]*Node
	InPortLinks map[string][]Link
}

// WorkerHandle is a stable, cluster-addressable reference to a worker
// actor (spec.md §3). It carries no liveness information of its own;
// liveness is tracked by pkg/transport and pkg/worker and observed
// through delivery errors.
type WorkerHandle struct {
	ID       string
	NodeAddr string
	Tag      string
}

// IsZero reports whether h is the zero WorkerHandle (no worker created).
func (h WorkerHandle) IsZero() bool {
	return h.ID == "" && h.NodeAddr == ""
}

// Deployment is the immutable, frozen per-node metadata produced by the
// deployment engine: node id -> the value that node's strategy's deploy
// hook returned (spec.md §3).
type Deployment struct {
	data map[string]any
}

// NewDeployment wraps a completed node-id -> deployment-data map as a
// frozen Deployment. Callers must not mutate data after this call.
func NewDeployment(data map[string]any) *Deployment {
	return &Deployment{data: data}
}

// Get returns the deployment data for nodeID, or nil if the node does not
// exist or has not been deployed yet.
func (d *Deployment) Get(nodeID string) any {
	if d == nil {
		return nil
	}
	return d.data[nodeID]
}

// NodeIDs returns the set of deployed node ids.
func (d *Deployment) NodeIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.data))
	for id := range d.data {
		ids = append(ids, id)
	}
	return ids
}

// Invocation is an opaque correlation token created when a message enters
// the system from a source and propagated through emits (spec.md §3).
type Invocation string

// Context is the per-hook-call bundle passed implicitly to every strategy
// hook: the descriptor of the node being served, its deploy-time args, its
// frozen deployment value (nil during deploy), the current invocation, and
// the strategy runtime operators (spec.md §3, §4.8).
type Context struct {
	NodeID     string
	Component  *Operation
	args       any
	deployment any
	Invocation Invocation
	ops        Ops
}

// NewContext builds a Context for one hook invocation.
func NewContext(nodeID string, component *Operation, args, deployment any, invocation Invocation, ops Ops) *Context {
	return &Context{
		NodeID:     nodeID,
		Component:  component,
		args:       args,
		deployment: deployment,
		Invocation: invocation,
		ops:        ops,
	}
}

// Args returns the node's deploy-time arguments.
func (c *Context) Args() any { return c.args }

// Deployment returns the node's frozen deployment value, nil during deploy.
func (c *Context) Deployment() any { return c.deployment }

// Context returns the current Context (the `context()` operator).
func (c *Context) Context() *Context { return c }

// InitialState returns the operation's initial state.
func (c *Context) InitialState() any {
	if c.Component == nil {
		return nil
	}
	return c.Component.InitialState
}

// Call invokes a callback with the operation's initial state and nil
// config (the two-arg `call(cb, args)` operator form).
func (c *Context) Call(cb string, args []any) (CallbackResult, error) {
	return c.ops.Call(cb, args)
}

// CallFull invokes a callback with full control over state and config.
func (c *Context) CallFull(cb string, state, config any, args []any) (CallbackResult, error) {
	return c.ops.CallFull(cb, state, config, args)
}

// CallIfExists is Call, but returns a no-op Result instead of an error
// when the callback is missing.
func (c *Context) CallIfExists(cb string, state, config any, args []any) (CallbackResult, error) {
	return c.ops.CallIfExists(cb, state, config, args)
}

// Emit enqueues values at the emit router for the current node.
func (c *Context) Emit(portValues map[string][]any) {
	c.ops.Emit(portValues)
}

// Send enqueues a message into a worker's mailbox.
func (c *Context) Send(handle WorkerHandle, message any) {
	c.ops.Send(handle, message)
}

// RemoteWorker creates a worker on a chosen node and returns its handle.
func (c *Context) RemoteWorker(nodeSelector string, initialState any, tag string) (WorkerHandle, error) {
	return c.ops.RemoteWorker(nodeSelector, initialState, tag)
}

// LocalWorker creates a worker on the local node.
func (c *Context) LocalWorker(initialState any, tag string) (WorkerHandle, error) {
	return c.ops.LocalWorker(initialState, tag)
}
