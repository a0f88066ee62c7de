package runtime

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/router"
	"github.com/skitter-run/skitter/pkg/transport"
	"github.com/skitter-run/skitter/pkg/types"
	"github.com/skitter-run/skitter/pkg/worker"
)

// Resolver turns a remote_worker node_selector into a dialable cluster
// address and reports whether the selector actually names this node. A
// nil Resolver falls back to treating the selector as a literal address
// and comparing it against Runtime's own Addr.
type Resolver func(selector string) (addr string, isLocal bool)

// Config constructs a Runtime.
type Config struct {
	// Addr is this node's own address, as advertised to peers and
	// compared against when deciding whether Send/RemoteWorker targets
	// the local node or a remote one.
	Addr string
	// JoinToken is presented when this Runtime dials a peer it has not
	// connected to yet.
	JoinToken string
	Tags      []string
	Broker    *events.Broker
	Resolver  Resolver
	SoftLimit int
}

// Runtime is the C8 strategy runtime API: the concrete types.Ops
// implementation backing every hook Context. One Runtime serves every
// node colocated on this process (local mode runs every workflow node
// through the same Runtime; worker/master modes run the subset of nodes
// deployed to them).
type Runtime struct {
	addr      string
	token     string
	tags      []string
	resolver  Resolver
	broker    *events.Broker
	softLimit int
	logger    zerolog.Logger

	mu         sync.RWMutex
	workflow   *types.Workflow
	deployment *types.Deployment
	router     *router.Router

	workersMu sync.RWMutex
	workers   map[string]*worker.Worker
	ownerNode map[string]string // handle.ID -> workflow node id

	clientsMu sync.Mutex
	clients   map[string]*transport.Client // cluster addr -> dialed client
	server    *transport.Server
}

// New constructs a Runtime. Bind must be called before Emit/
// DeliverToWorkflow can route anything, and before LocalWorker (or a
// RemoteWorker that resolves to this node) can create a worker, since
// worker creation looks up the node's process hook in the bound workflow;
// the bound Deployment may still be a placeholder at that point. Send
// works immediately since it consults neither.
func New(cfg Config) *Runtime {
	return &Runtime{
		addr:      cfg.Addr,
		token:     cfg.JoinToken,
		tags:      cfg.Tags,
		resolver:  cfg.Resolver,
		broker:    cfg.Broker,
		softLimit: cfg.SoftLimit,
		logger:    log.WithComponent("runtime"),
		workers:   make(map[string]*worker.Worker),
		ownerNode: make(map[string]string),
		clients:   make(map[string]*transport.Client),
	}
}

// AttachServer records the transport server this node serves on, so Send
// can push a worker_message down a peer's inbound stream before dialing
// that peer. It does not register anything on s: the Runtime is passed to
// transport.NewServer as its deliverer and creator. Call once, before the
// server starts accepting connections.
func (r *Runtime) AttachServer(s *transport.Server) {
	r.server = s
}

// Broker exposes the cluster event broker this Runtime publishes to, so a
// mode supervisor's caller can subscribe pkg/metrics or other observers
// without threading a second broker reference through construction.
func (r *Runtime) Broker() *events.Broker {
	return r.broker
}

// Bind freezes the workflow/deployment pair this Runtime routes emits
// for. Called by the deploying node right after deploy.Engine.Deploy
// succeeds, and by every other node once it receives the broadcast
// Deployment (spec.md §4.6 step 3).
func (r *Runtime) Bind(workflow *types.Workflow, deployment *types.Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflow = workflow
	r.deployment = deployment
	r.router = router.New(workflow, deployment, r, r.broker)
}

// OpsFor implements types.OpsFactory: it returns the Ops value a hook
// running on behalf of nodeID under invocation should see. The returned
// value captures nodeID's Operation so Call/CallFull/CallIfExists
// dispatch against the right callback table, independent of which other
// node's hooks are running concurrently.
func (r *Runtime) OpsFor(nodeID string, invocation types.Invocation) types.Ops {
	r.mu.RLock()
	var component *types.Operation
	if r.workflow != nil {
		if node, ok := r.workflow.Nodes[nodeID]; ok {
			component = node.Operation
		}
	}
	r.mu.RUnlock()

	return &nodeOps{rt: r, nodeID: nodeID, component: component, invocation: invocation}
}

// DeliverLocal implements transport.LocalDeliverer: a worker_message
// envelope addressed to one of this node's local workers arrived over
// the wire.
func (r *Runtime) DeliverLocal(handle types.WorkerHandle, invocation types.Invocation, payload any) error {
	r.workersMu.RLock()
	w, ok := r.workers[handle.ID]
	r.workersMu.RUnlock()
	if !ok {
		return &types.DeliveryError{Handle: handle, Reason: "no such local worker"}
	}
	return w.Send(payload, invocation)
}

// CreateLocalWorker implements transport.WorkerCreator: another node's
// remote_worker call targeted this node. nodeID names the workflow node
// whose strategy.Process hook the new worker should run.
func (r *Runtime) CreateLocalWorker(nodeID string, initialState any, tag string) (types.WorkerHandle, error) {
	return r.newWorker(nodeID, initialState, tag)
}

func (r *Runtime) newWorker(nodeID string, initialState any, tag string) (types.WorkerHandle, error) {
	r.mu.RLock()
	var node *types.Node
	deployment := r.deployment
	if r.workflow != nil {
		node = r.workflow.Nodes[nodeID]
	}
	r.mu.RUnlock()

	if node == nil {
		return types.WorkerHandle{}, fmt.Errorf("runtime: unknown workflow node %q", nodeID)
	}
	strategy := node.EffectiveStrategy()
	if strategy == nil || strategy.Process == nil {
		return types.WorkerHandle{}, fmt.Errorf("runtime: node %q has no process hook", nodeID)
	}

	handle := types.WorkerHandle{ID: uuid.New().String(), NodeAddr: r.addr, Tag: tag}

	w := worker.New(worker.Config{
		Handle:      handle,
		Tag:         tag,
		State:       initialState,
		NodeID:      nodeID,
		Component:   node.Operation,
		Args:        node.Args,
		Deployment:  deployment.Get(nodeID),
		Ops:         r.OpsFor(nodeID, ""),
		Process:     strategy.Process,
		SoftLimit:   r.softLimit,
		OnSoftLimit: r.onSoftLimit,
		OnCrash:     r.onCrash(strategy),
	})

	r.workersMu.Lock()
	r.workers[handle.ID] = w
	r.ownerNode[handle.ID] = nodeID
	r.workersMu.Unlock()

	w.Start()
	return handle, nil
}

func (r *Runtime) onSoftLimit(handle types.WorkerHandle, depth int) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:    events.EventDeliveryDropped,
		Message: fmt.Sprintf("worker %s mailbox depth %d exceeds soft limit", handle.ID, depth),
		Metadata: map[string]string{
			"worker_id": handle.ID,
			"depth":     strconv.Itoa(depth),
		},
	})
}

func (r *Runtime) onCrash(strategy *types.Strategy) worker.CrashHook {
	return func(handle types.WorkerHandle, err error) {
		r.logger.Error().Err(err).Str("worker_id", handle.ID).Msg("worker crashed")

		if r.broker != nil {
			r.broker.Publish(&events.Event{
				Type:     events.EventWorkerCrashed,
				Message:  err.Error(),
				Metadata: map[string]string{"worker_id": handle.ID},
			})
		}

		if strategy.WorkerDown == nil {
			return
		}

		r.workersMu.RLock()
		nodeID := r.ownerNode[handle.ID]
		r.workersMu.RUnlock()

		r.mu.RLock()
		deployment := r.deployment
		var node *types.Node
		if r.workflow != nil {
			node = r.workflow.Nodes[nodeID]
		}
		r.mu.RUnlock()
		if node == nil {
			return
		}

		ctx := types.NewContext(nodeID, node.Operation, node.Args, deployment.Get(nodeID), "", r.OpsFor(nodeID, ""))
		if err := strategy.WorkerDown(ctx, handle); err != nil {
			r.logger.Error().Err(err).Str("worker_id", handle.ID).Msg("worker_down hook failed")
		}
	}
}

// WorkerState returns the current state of the local worker identified
// by id, or nil if no such worker exists on this node. Exposed for
// metrics and tests; strategy hooks reach a worker's state only through
// the process hook's own arguments, never through this accessor.
func (r *Runtime) WorkerState(id string) any {
	r.workersMu.RLock()
	w, ok := r.workers[id]
	r.workersMu.RUnlock()
	if !ok {
		return nil
	}
	return w.State()
}

// WorkerCount returns the number of local workers currently running on
// this Runtime, for the worker-count gauge pkg/metrics polls.
func (r *Runtime) WorkerCount() int {
	r.workersMu.RLock()
	defer r.workersMu.RUnlock()
	return len(r.workers)
}

// removeWorker drops a worker's bookkeeping, used by Undeploy to
// invalidate every handle created under a torn-down workflow.
func (r *Runtime) removeWorker(id string) {
	r.workersMu.Lock()
	if w, ok := r.workers[id]; ok {
		w.Stop()
		delete(r.workers, id)
		delete(r.ownerNode, id)
	}
	r.workersMu.Unlock()
}

// StopAllWorkers stops and forgets every local worker. Called on
// undeployment (spec.md §4.6, "undeployment... invalidates all worker
// handles").
func (r *Runtime) StopAllWorkers() {
	r.workersMu.Lock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	r.workersMu.Unlock()

	for _, id := range ids {
		r.removeWorker(id)
	}
}

// Connect eagerly dials addr and caches the connection, the same client
// a later Send/RemoteWorker targeting addr would lazily create. Master
// mode uses it to validate its configured worker addresses at startup
// (spec.md §6, "failure to connect is fatal" for a master's `workers`
// list).
func (r *Runtime) Connect(addr string) error {
	_, err := r.client(addr)
	return err
}

// PeerDone returns the done channel of the cached connection to addr, so
// a mode supervisor can watch for that specific peer disconnecting
// (shutdown_with_workers watches each configured worker's channel). ok
// is false if Connect/Send/RemoteWorker has never dialed addr.
func (r *Runtime) PeerDone(addr string) (ch <-chan struct{}, ok bool) {
	r.clientsMu.Lock()
	c, ok := r.clients[addr]
	r.clientsMu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Done(), true
}

// client returns a dialed transport.Client to addr, reusing an existing
// connection if one is already open.
func (r *Runtime) client(addr string) (*transport.Client, error) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	if c, ok := r.clients[addr]; ok {
		return c, nil
	}

	c, err := transport.Dial(addr, r.addr, r.token, r.tags, r.handleInbound)
	if err != nil {
		return nil, err
	}
	r.clients[addr] = c
	return c, nil
}

// handleInbound processes envelopes a dialed peer sends back on our own
// client connection (a worker_message addressed to a local worker we
// created remotely, or control traffic).
func (r *Runtime) handleInbound(env *transport.Envelope) {
	if env.Kind != transport.KindWorkerMessage || env.WorkerMessage == nil {
		return
	}
	wm := env.WorkerMessage
	if err := r.DeliverLocal(wm.Handle, wm.Invocation, wm.Payload); err != nil {
		r.logger.Warn().Err(err).Str("worker_id", wm.Handle.ID).Msg("dropped inbound worker message")
	}
}

// resolve turns a node_selector into (addr, isLocal).
func (r *Runtime) resolve(selector string) (string, bool) {
	if selector == "" || selector == r.addr {
		return r.addr, true
	}
	if r.resolver != nil {
		return r.resolver(selector)
	}
	return selector, selector == r.addr
}
