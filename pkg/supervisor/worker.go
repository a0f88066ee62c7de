package supervisor

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/runtime"
	"github.com/skitter-run/skitter/pkg/transport"
)

// WorkerConfig constructs a Worker supervisor.
type WorkerConfig struct {
	// NodeID is this worker's address, used both as its cluster identity
	// and the address peers dial to reach it.
	NodeID string
	// BindAddr is the address the transport server listens on. Defaults
	// to NodeID.
	BindAddr string
	// MasterAddr, if set, is dialed on startup to register this worker
	// with a master and to detect that master's liveness. Matching
	// spec.md §6, failure to connect is a non-fatal warning, not fatal.
	MasterAddr string
	// Token is the join token this worker presents when it dials
	// MasterAddr (or any other peer). A master connecting to this worker
	// presents a token issued by this worker's IssueToken instead.
	Token string
	// Tags are symbols advertised to masters (spec.md §6).
	Tags []string
	// NoShutdownWithMaster disables the default shutdown_with_master
	// policy; spec.md §6 documents shutdown_with_master as true by
	// default for workers.
	NoShutdownWithMaster bool
	SoftLimit            int
	Broker               *events.Broker
}

// Worker is the C9 worker mode supervisor: starts the registry, the
// worker runtime, and the transport, then waits for a master to attach
// (spec.md §4.9). It deploys nothing of its own; workers only ever run
// the process/deploy hooks a master's deployment assigns to them via
// remote_worker/CreateWorker.
type Worker struct {
	cfg        WorkerConfig
	broker     *events.Broker
	ownsBroker bool
	tokens     *transport.TokenManager
	membership *transport.Membership
	server     *transport.Server
	runtime    *runtime.Runtime
	logger     zerolog.Logger
}

// NewWorker constructs a Worker supervisor.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.BindAddr == "" {
		cfg.BindAddr = cfg.NodeID
	}

	broker, owns := ensureBroker(cfg.Broker)
	tokens := transport.NewTokenManager()
	membership := transport.NewMembership(DefaultFailureDetectionTimeout, broker)

	rt := runtime.New(runtime.Config{
		Addr:      cfg.NodeID,
		JoinToken: cfg.Token,
		Tags:      cfg.Tags,
		Broker:    broker,
		SoftLimit: cfg.SoftLimit,
	})

	server := transport.NewServer(tokens, membership, rt, rt)
	server.RequireRole(transport.RoleMaster)
	rt.AttachServer(server)

	return &Worker{
		cfg:        cfg,
		broker:     broker,
		ownsBroker: owns,
		tokens:     tokens,
		membership: membership,
		server:     server,
		runtime:    rt,
		logger:     log.WithComponent("supervisor.worker"),
	}
}

// Runtime exposes the underlying C8 runtime, mainly for tests.
func (w *Worker) Runtime() *runtime.Runtime { return w.runtime }

// IssueToken generates a join token authorizing role to connect to this
// worker's transport server, for out-of-band distribution to whichever
// master should attach to it.
func (w *Worker) IssueToken(role transport.Role) (*transport.JoinToken, error) {
	return w.tokens.Generate(role, tokenTTL)
}

// Run listens on cfg.BindAddr, optionally registers with cfg.MasterAddr,
// and blocks until an OS signal, a context cancellation, or (when
// shutdown_with_master applies) the master connection drops.
func (w *Worker) Run(ctx context.Context) (ExitCode, error) {
	if w.ownsBroker {
		w.broker.Start()
		defer w.broker.Stop()
	}

	w.membership.Start(DefaultMembershipSweepInterval)
	defer w.membership.Stop()

	lis, err := net.Listen("tcp", w.cfg.BindAddr)
	if err != nil {
		return ExitNormal, fmt.Errorf("supervisor: worker listen on %s: %w", w.cfg.BindAddr, err)
	}
	go func() {
		if err := w.server.ServeOn(lis); err != nil {
			w.logger.Warn().Err(err).Msg("transport server stopped")
		}
	}()
	defer w.server.Stop()

	var masterDone <-chan struct{}
	if w.cfg.MasterAddr != "" {
		if err := w.runtime.Connect(w.cfg.MasterAddr); err != nil {
			w.logger.Warn().Err(err).Str("master", w.cfg.MasterAddr).Msg("could not register with master")
		} else {
			w.logger.Info().Str("master", w.cfg.MasterAddr).Msg("registered with master")
			if !w.cfg.NoShutdownWithMaster {
				if done, ok := w.runtime.PeerDone(w.cfg.MasterAddr); ok {
					masterDone = done
				}
			}
		}
	}

	sigCh := shutdownSignal()
	select {
	case <-sigCh:
		w.logger.Info().Msg("shutdown signal received")
		return ExitNormal, nil
	case <-ctx.Done():
		return ExitNormal, nil
	case <-masterDone:
		w.logger.Warn().Msg("master disconnected, shutting down")
		return ExitPeerDisconnected, nil
	}
}

func ensureBroker(b *events.Broker) (*events.Broker, bool) {
	if b != nil {
		return b, false
	}
	return events.NewBroker(), true
}
