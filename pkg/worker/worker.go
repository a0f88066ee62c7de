package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/types"
)

// SoftLimitHook is invoked whenever a worker's mailbox depth exceeds its
// configured soft limit. It never applies backpressure (spec.md §5: "no
// forced backpressure in the core"); it exists purely so pkg/metrics can
// count the event.
type SoftLimitHook func(handle types.WorkerHandle, depth int)

// CrashHook is invoked once, from the worker's own goroutine, when a
// ProcessHook activation fails or panics. It gives the owning strategy a
// chance to react via its optional WorkerDownHook (spec.md §4.4).
type CrashHook func(handle types.WorkerHandle, err error)

// Config constructs one Worker.
type Config struct {
	Handle     types.WorkerHandle
	Tag        string
	State      any
	NodeID     string
	Component  *types.Operation
	Args       any
	Deployment any
	Ops        types.Ops
	Process    types.ProcessHook
	SoftLimit  int // 0 disables the soft-limit metric
	OnSoftLimit SoftLimitHook
	OnCrash    CrashHook
}

// mailItem pairs one queued message with the invocation it belongs to,
// so each ProcessHook activation sees the invocation of the message
// being delivered rather than one fixed at worker creation time
// (spec.md §3: invocation is a per-message correlation token).
type mailItem struct {
	payload    any
	invocation types.Invocation
}

// Worker is the C4 component: a single-threaded actor with one unbounded
// FIFO mailbox and one mutable state value. Messages are delivered to the
// ProcessHook strictly in arrival order; at most one activation runs at a
// time, so the hook body may treat state as race-free (spec.md §4.4, §5).
type Worker struct {
	Handle types.WorkerHandle
	Tag    string

	nodeID     string
	component  *types.Operation
	args       any
	deployment any
	ops        types.Ops
	process    types.ProcessHook

	softLimit   int
	onSoftLimit SoftLimitHook
	onCrash     CrashHook

	stateMu sync.RWMutex
	state   any

	queueMu sync.Mutex
	queue   []mailItem
	cond    *sync.Cond
	stopped bool

	dead atomic.Bool
	done chan struct{}

	logger zerolog.Logger
}

// New constructs a Worker; call Start to begin draining its mailbox.
func New(cfg Config) *Worker {
	w := &Worker{
		Handle:      cfg.Handle,
		Tag:         cfg.Tag,
		nodeID:      cfg.NodeID,
		component:   cfg.Component,
		args:        cfg.Args,
		deployment:  cfg.Deployment,
		ops:         cfg.Ops,
		process:     cfg.Process,
		softLimit:   cfg.SoftLimit,
		onSoftLimit: cfg.OnSoftLimit,
		onCrash:     cfg.OnCrash,
		state:       cfg.State,
		done:        make(chan struct{}),
		logger:      log.WithWorkerID(cfg.Handle.ID),
	}
	w.cond = sync.NewCond(&w.queueMu)
	return w
}

// Start begins draining the mailbox on its own goroutine.
func (w *Worker) Start() {
	go w.run()
}

// State returns the worker's current state. Safe to call concurrently
// with message delivery; it reflects the state as of the most recently
// completed ProcessHook activation.
func (w *Worker) State() any {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

func (w *Worker) setState(s any) {
	w.stateMu.Lock()
	w.state = s
	w.stateMu.Unlock()
}

// IsDead reports whether a ProcessHook activation has crashed this
// worker. Sending to a dead worker is the caller's responsibility to
// treat as a no-op delivery error (spec.md §4.4).
func (w *Worker) IsDead() bool {
	return w.dead.Load()
}

// Send enqueues message for delivery under the given invocation. It
// never blocks the sender (spec.md §5); queue growth past SoftLimit
// only triggers the OnSoftLimit metric hook, never backpressure.
func (w *Worker) Send(message any, invocation types.Invocation) error {
	if w.IsDead() {
		return &types.DeliveryError{Handle: w.Handle, Reason: "worker is dead"}
	}

	w.queueMu.Lock()
	if w.stopped {
		w.queueMu.Unlock()
		return &types.DeliveryError{Handle: w.Handle, Reason: "worker is stopped"}
	}
	w.queue = append(w.queue, mailItem{payload: message, invocation: invocation})
	depth := len(w.queue)
	w.cond.Signal()
	w.queueMu.Unlock()

	if w.softLimit > 0 && depth > w.softLimit && w.onSoftLimit != nil {
		w.onSoftLimit(w.Handle, depth)
	}
	return nil
}

// Stop rejects further sends, lets the worker process the messages
// already in its mailbox, and returns once its goroutine has exited. It
// is the undeployment-time mailbox drain
// point (spec.md §5, "cancellation & timeouts").
func (w *Worker) Stop() {
	w.queueMu.Lock()
	w.stopped = true
	w.cond.Broadcast()
	w.queueMu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		msg, ok := w.next()
		if !ok {
			return
		}
		w.deliverOne(msg)
		if w.IsDead() {
			return
		}
	}
}

func (w *Worker) next() (mailItem, bool) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	for len(w.queue) == 0 && !w.stopped {
		w.cond.Wait()
	}
	if len(w.queue) == 0 {
		return mailItem{}, false
	}
	item := w.queue[0]
	w.queue = w.queue[1:]
	return item, true
}

func (w *Worker) deliverOne(item mailItem) {
	defer func() {
		if r := recover(); r != nil {
			w.crash(fmt.Errorf("process hook panicked: %v", r))
		}
	}()

	ctx := types.NewContext(w.nodeID, w.component, w.args, w.deployment, item.invocation, w.ops)
	newState, err := w.process(ctx, item.payload, w.State(), w.Tag)
	if err != nil {
		w.crash(err)
		return
	}
	w.setState(newState)
}

func (w *Worker) crash(err error) {
	w.dead.Store(true)

	w.queueMu.Lock()
	w.stopped = true
	w.queueMu.Unlock()

	w.logger.Error().Err(err).Msg("worker process activation failed, worker terminated")

	if w.onCrash != nil {
		w.onCrash(w.Handle, err)
	}
}
