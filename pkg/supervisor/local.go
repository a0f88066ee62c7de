package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/deploy"
	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/registry"
	"github.com/skitter-run/skitter/pkg/runtime"
	"github.com/skitter-run/skitter/pkg/types"
)

// LocalConfig constructs a Local supervisor.
type LocalConfig struct {
	// Addr names this process in logs and worker handles; it never
	// dials anywhere, since Local runs every node in one address space.
	Addr string
	// SoftLimit is the per-worker mailbox depth that, once exceeded,
	// publishes a delivery-dropped event (spec.md §5).
	SoftLimit int
	// Broker receives cluster events. A broker is created and started
	// internally if nil, and stopped by Run on the way out.
	Broker *events.Broker
	// Deploy is the `deploy` configuration option (spec.md §6): a
	// zero-arg factory returning the workflow to deploy on startup. May
	// be nil, in which case Run blocks until shutdown with nothing
	// deployed and the caller is expected to call Deploy itself.
	Deploy registry.WorkflowFactory
}

// Local is the C9 local mode supervisor: C2-C8 running in one address
// space, with every workflow node's workers as goroutines scheduled by
// pkg/worker (spec.md §4.9, "starts C2-C8 in one address space").
type Local struct {
	cfg        LocalConfig
	broker     *events.Broker
	ownsBroker bool
	deployer   *deploy.Engine
	runtime    *runtime.Runtime
	logger     zerolog.Logger

	mu         sync.Mutex
	workflow   *types.Workflow
	deployment *types.Deployment
}

// NewLocal constructs a Local supervisor. It does not deploy anything;
// call Deploy or supply cfg.Deploy and call Run.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.Addr == "" {
		cfg.Addr = "local"
	}

	broker := cfg.Broker
	ownsBroker := false
	if broker == nil {
		broker = events.NewBroker()
		ownsBroker = true
	}

	rt := runtime.New(runtime.Config{
		Addr:      cfg.Addr,
		Broker:    broker,
		SoftLimit: cfg.SoftLimit,
	})

	return &Local{
		cfg:        cfg,
		broker:     broker,
		ownsBroker: ownsBroker,
		deployer:   deploy.New(broker),
		runtime:    rt,
		logger:     log.WithComponent("supervisor.local"),
	}
}

// Deploy runs workflow through the deployment engine and, on success,
// binds the runtime's emit router to it so emits resolve. On failure
// nothing changes: the engine has already rolled back any partial deploy.
func (l *Local) Deploy(workflow *types.Workflow) error {
	// Bind the workflow before deploying so a strategy's deploy hook can
	// call local_worker/remote_worker, which look up the node's Operation
	// through the runtime's bound workflow; the real Deployment value
	// replaces this placeholder once every node has deployed.
	l.runtime.Bind(workflow, types.NewDeployment(nil))

	deployment, err := l.deployer.Deploy(workflow, l.runtime)
	if err != nil {
		return err
	}

	l.runtime.Bind(workflow, deployment)

	l.mu.Lock()
	l.workflow = workflow
	l.deployment = deployment
	l.mu.Unlock()

	return nil
}

// Undeploy tears down the current deployment, if any, invalidating every
// worker handle it created (spec.md §4.6).
func (l *Local) Undeploy() error {
	l.mu.Lock()
	workflow, deployment := l.workflow, l.deployment
	l.workflow, l.deployment = nil, nil
	l.mu.Unlock()

	if workflow == nil {
		return nil
	}

	err := l.deployer.Undeploy(workflow, deployment, l.runtime)
	l.runtime.StopAllWorkers()
	return err
}

// Runtime exposes the underlying C8 runtime, mainly for tests and for
// callers that want to drive Ops directly (e.g. the `deploy` CLI
// subcommand feeding a workflow-level source).
func (l *Local) Runtime() *runtime.Runtime { return l.runtime }

// Run deploys cfg.Deploy (if set) and blocks until ctx is cancelled or an
// OS signal arrives, then undeploys and returns. Local never sees a
// shutdown_with_master/shutdown_with_workers style peer-disconnect, so it
// only ever exits with ExitNormal.
func (l *Local) Run(ctx context.Context) (ExitCode, error) {
	if l.ownsBroker {
		l.broker.Start()
		defer l.broker.Stop()
	}

	if l.cfg.Deploy != nil {
		workflow, err := l.cfg.Deploy()
		if err != nil {
			return ExitNormal, fmt.Errorf("supervisor: deploy factory: %w", err)
		}
		if err := l.Deploy(workflow); err != nil {
			return ExitNormal, err
		}
		l.logger.Info().Msg("workflow deployed")
	}

	sigCh := shutdownSignal()
	select {
	case <-sigCh:
		l.logger.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		l.logger.Info().Msg("context cancelled")
	}

	if err := l.Undeploy(); err != nil {
		l.logger.Warn().Err(err).Msg("undeploy on shutdown failed")
	}
	return ExitNormal, nil
}
