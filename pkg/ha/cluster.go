package ha

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/metrics"
)

// Peer is one member of the master HA cluster's static initial
// configuration. spec.md's masters are presumed long-lived,
// operator-configured processes, not a dynamically joining fleet, so
// Cluster takes the full initial membership up front rather than
// implementing its own join RPC.
type Peer struct {
	ID   string
	Addr string
}

// Config constructs a Cluster.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	// Peers is the full cluster membership (including this node) to
	// bootstrap with, when Bootstrap is true.
	Peers []Peer
	// Bootstrap initializes a new cluster from Peers. Exactly one
	// process across the cluster's first startup should set this;
	// every other node joins via AddVoter once the leader is up.
	// Restarting an already-bootstrapped node should leave this false;
	// DataDir already holds the log Raft resumes from.
	Bootstrap bool
	// Broker, if set, receives an EventHALeaderChanged event each time
	// this node's Raft leadership status flips.
	Broker *events.Broker
}

// Cluster replicates which named workflow the master tier has deployed,
// via Raft, across a static set of master processes (SPEC_FULL.md §5).
type Cluster struct {
	cfg    Config
	raft   *raft.Raft
	fsm    *FSM
	logger zerolog.Logger
}

// New brings up a Raft instance over cfg.BindAddr backed by BoltDB log
// and stable stores under cfg.DataDir, and bootstraps cfg.Peers as the
// initial cluster configuration if cfg.Bootstrap is set.
func New(cfg Config) (*Cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ha: create data dir: %w", err)
	}

	fsm := newFSM()

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	// Tuned for LAN/edge deployments rather than Raft's WAN-conservative
	// defaults, matching spec.md's single-datacenter cluster model.
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	notifyCh := make(chan bool, 1)
	raftCfg.NotifyCh = notifyCh

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("ha: resolve bind addr %s: %w", cfg.BindAddr, err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("ha: transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("ha: snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("ha: log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("ha: stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("ha: new raft: %w", err)
	}

	if cfg.Bootstrap {
		servers := make([]raft.Server, len(cfg.Peers))
		for i, p := range cfg.Peers {
			servers[i] = raft.Server{ID: raft.ServerID(p.ID), Address: raft.ServerAddress(p.Addr)}
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("ha: bootstrap cluster: %w", err)
		}
	}

	c := &Cluster{cfg: cfg, raft: r, fsm: fsm, logger: log.WithComponent("ha.cluster")}
	go c.watchLeadership(notifyCh)
	return c, nil
}

// IsLeader reports whether this node currently holds Raft leadership.
func (c *Cluster) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's bind address, or "" if none
// is known.
func (c *Cluster) LeaderAddr() string {
	return string(c.raft.Leader())
}

// State returns the replicated deployment state.
func (c *Cluster) State() State {
	return c.fsm.State()
}

// AddVoter adds nodeID/addr as a new voting member. Only the leader can
// do this; callers should check IsLeader first or tolerate the error.
func (c *Cluster) AddVoter(nodeID, addr string) error {
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	return future.Error()
}

// Deploy replicates "workflowName is now deployed" to the cluster. Only
// the leader can call this successfully; a follower's Apply returns
// raft.ErrNotLeader.
func (c *Cluster) Deploy(workflowName string) error {
	return c.apply(Command{Op: opDeploy, WorkflowName: workflowName})
}

// Undeploy replicates "nothing is deployed" to the cluster.
func (c *Cluster) Undeploy() error {
	return c.apply(Command{Op: opUndeploy})
}

func (c *Cluster) apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("ha: marshal command: %w", err)
	}
	future := c.raft.Apply(data, 5*time.Second)
	return future.Error()
}

// watchLeadership republishes Raft's own leadership-change
// notifications onto cfg.Broker, so a supervisor watching the cluster's
// events (rather than holding a direct raft.Raft reference) learns when
// it must redeploy the cluster's workflow.
func (c *Cluster) watchLeadership(notifyCh <-chan bool) {
	for leader := range notifyCh {
		c.logger.Info().Bool("leader", leader).Msg("ha leadership changed")
		if c.cfg.Broker == nil {
			continue
		}
		meta := map[string]string{"leader": "false"}
		if leader {
			meta["leader"] = "true"
		}
		c.cfg.Broker.Publish(&events.Event{
			Type:     events.EventHALeaderChanged,
			Message:  "ha leadership changed",
			Metadata: meta,
		})
	}
}

// Shutdown releases Raft's resources. DataDir's log retains committed
// state, so a restart resumes rather than re-bootstrapping.
func (c *Cluster) Shutdown() error {
	return c.raft.Shutdown().Error()
}
