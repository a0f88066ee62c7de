package supervisor

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/deploy"
	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/registry"
	"github.com/skitter-run/skitter/pkg/runtime"
	"github.com/skitter-run/skitter/pkg/transport"
	"github.com/skitter-run/skitter/pkg/types"
)

// MasterConfig constructs a Master supervisor.
type MasterConfig struct {
	// Addr is this master's address/identity.
	Addr string
	// BindAddr is the address the transport server listens on. Defaults
	// to Addr.
	BindAddr string
	// Workers is the list of worker addresses to connect to at startup;
	// failure to connect to any of them is fatal (spec.md §6).
	Workers []string
	// ShutdownWithWorkers terminates the master when any of Workers
	// disconnects.
	ShutdownWithWorkers bool
	// Deploy is the `deploy` configuration option: a zero-arg factory
	// returning the workflow to deploy once Workers are all connected.
	Deploy registry.WorkflowFactory
	// Token is presented when dialing each address in Workers.
	Token     string
	SoftLimit int
	Broker    *events.Broker
}

// Master is the C9 master mode supervisor: starts the registry, the
// transport, and the deployment engine; once the expected workers are
// connected, deploys the configured workflow, if any (spec.md §4.9).
type Master struct {
	cfg        MasterConfig
	broker     *events.Broker
	ownsBroker bool
	tokens     *transport.TokenManager
	membership *transport.Membership
	server     *transport.Server
	runtime    *runtime.Runtime
	deployer   *deploy.Engine
	logger     zerolog.Logger

	mu         sync.Mutex
	workflow   *types.Workflow
	deployment *types.Deployment

	workerDown chan string
}

// NewMaster constructs a Master supervisor.
func NewMaster(cfg MasterConfig) *Master {
	if cfg.BindAddr == "" {
		cfg.BindAddr = cfg.Addr
	}

	broker, owns := ensureBroker(cfg.Broker)
	tokens := transport.NewTokenManager()
	membership := transport.NewMembership(DefaultFailureDetectionTimeout, broker)

	rt := runtime.New(runtime.Config{
		Addr:      cfg.Addr,
		JoinToken: cfg.Token,
		Broker:    broker,
		SoftLimit: cfg.SoftLimit,
	})

	server := transport.NewServer(tokens, membership, rt, rt)
	rt.AttachServer(server)

	return &Master{
		cfg:        cfg,
		broker:     broker,
		ownsBroker: owns,
		tokens:     tokens,
		membership: membership,
		server:     server,
		runtime:    rt,
		deployer:   deploy.New(broker),
		logger:     log.WithComponent("supervisor.master"),
	}
}

// Runtime exposes the underlying C8 runtime, mainly for tests.
func (m *Master) Runtime() *runtime.Runtime { return m.runtime }

// IssueToken generates a join token for role, for out-of-band
// distribution to a node that will dial this master.
func (m *Master) IssueToken(role transport.Role) (*transport.JoinToken, error) {
	return m.tokens.Generate(role, tokenTTL)
}

// Deploy runs workflow through the deployment engine and binds the
// runtime's emit router to it.
func (m *Master) Deploy(workflow *types.Workflow) error {
	// Bind the workflow before deploying so a strategy's deploy hook can
	// call local_worker/remote_worker, which look up the node's Operation
	// through the runtime's bound workflow; the real Deployment value
	// replaces this placeholder once every node has deployed.
	m.runtime.Bind(workflow, types.NewDeployment(nil))

	deployment, err := m.deployer.Deploy(workflow, m.runtime)
	if err != nil {
		return err
	}

	m.runtime.Bind(workflow, deployment)

	m.mu.Lock()
	m.workflow, m.deployment = workflow, deployment
	m.mu.Unlock()

	return nil
}

// Undeploy tears down the current deployment, re-issuing the teardown
// hook to every node in reverse topological order; nodes that are no longer
// reachable simply never acknowledge (spec.md §4.9).
func (m *Master) Undeploy() error {
	m.mu.Lock()
	workflow, deployment := m.workflow, m.deployment
	m.workflow, m.deployment = nil, nil
	m.mu.Unlock()

	if workflow == nil {
		return nil
	}
	return m.deployer.Undeploy(workflow, deployment, m.runtime)
}

// Start brings up the broker, membership sweeper, and transport listener,
// then connects to every configured worker (fatal on failure) and deploys
// cfg.Deploy, if set. It is the non-blocking half of Run, split out so a
// one-shot caller (the `deploy` CLI subcommand) can deploy to a set of
// workers without entering Wait's indefinite signal loop. Stop releases
// everything Start acquired.
func (m *Master) Start() error {
	if m.ownsBroker {
		m.broker.Start()
	}

	m.membership.Start(DefaultMembershipSweepInterval)

	lis, err := net.Listen("tcp", m.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("supervisor: master listen on %s: %w", m.cfg.BindAddr, err)
	}
	go func() {
		if err := m.server.ServeOn(lis); err != nil {
			m.logger.Warn().Err(err).Msg("transport server stopped")
		}
	}()

	m.workerDown = make(chan string, len(m.cfg.Workers))
	for _, addr := range m.cfg.Workers {
		if err := m.runtime.Connect(addr); err != nil {
			return fmt.Errorf("supervisor: connect to worker %s: %w", addr, err)
		}
		done, ok := m.runtime.PeerDone(addr)
		if !ok {
			continue
		}
		addr := addr
		go func() {
			<-done
			select {
			case m.workerDown <- addr:
			default:
			}
		}()
	}
	m.logger.Info().Int("count", len(m.cfg.Workers)).Msg("all configured workers connected")

	if m.cfg.Deploy != nil {
		workflow, err := m.cfg.Deploy()
		if err != nil {
			return fmt.Errorf("supervisor: deploy factory: %w", err)
		}
		if err := m.Deploy(workflow); err != nil {
			return err
		}
		m.logger.Info().Msg("workflow deployed")
	}
	return nil
}

// Stop tears down what Start brought up, without touching the current
// deployment (callers that want a clean teardown should Undeploy first).
func (m *Master) Stop() {
	m.server.Stop()
	m.membership.Stop()
	if m.ownsBroker {
		m.broker.Stop()
	}
}

// Wait blocks until an OS signal, ctx cancellation, or (when
// shutdown_with_workers applies) a configured worker disconnects, then
// re-issues undeploy before returning. Call only after a successful Start.
func (m *Master) Wait(ctx context.Context) (ExitCode, error) {
	sigCh := shutdownSignal()
	for {
		select {
		case <-sigCh:
			m.logger.Info().Msg("shutdown signal received")
			if err := m.Undeploy(); err != nil {
				m.logger.Warn().Err(err).Msg("undeploy on shutdown failed")
			}
			return ExitNormal, nil
		case <-ctx.Done():
			if err := m.Undeploy(); err != nil {
				m.logger.Warn().Err(err).Msg("undeploy on shutdown failed")
			}
			return ExitNormal, nil
		case addr := <-m.workerDown:
			m.logger.Warn().Str("worker", addr).Msg("worker disconnected")
			if !m.cfg.ShutdownWithWorkers {
				continue
			}
			if err := m.Undeploy(); err != nil {
				m.logger.Warn().Err(err).Msg("undeploy on unclean shutdown failed")
			}
			return ExitPeerDisconnected, nil
		}
	}
}

// Run is Start followed by Wait, the full long-running master lifecycle.
func (m *Master) Run(ctx context.Context) (ExitCode, error) {
	if err := m.Start(); err != nil {
		m.Stop()
		return ExitNormal, err
	}
	defer m.Stop()
	return m.Wait(ctx)
}
