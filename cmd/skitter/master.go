package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skitter-run/skitter/pkg/events"
	"github.com/skitter-run/skitter/pkg/ha"
	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/metrics"
	"github.com/skitter-run/skitter/pkg/registry"
	"github.com/skitter-run/skitter/pkg/supervisor"
)

var masterCmd = &cobra.Command{
	Use:   "master [worker_address...]",
	Short: "Run a master node: connect the given workers, then deploy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "shutdown_with_workers", "deploy")
		if err != nil {
			return err
		}

		workerFile, _ := cmd.Flags().GetString("worker-file")
		workers, err := workerAddresses(args, workerFile, cfg)
		if err != nil {
			return err
		}

		deployName, _ := cmd.Flags().GetString("deploy")
		if deployName == "" {
			deployName = cfg.Deploy
		}
		factory, err := resolveDeploy(deployName)
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		token, _ := cmd.Flags().GetString("token")
		softLimit, _ := cmd.Flags().GetInt("soft-limit")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		telemetryOn, _ := cmd.Flags().GetBool("telemetry")

		mcfg := supervisor.MasterConfig{
			Addr:                addr,
			BindAddr:            bindAddr,
			Workers:             workers,
			ShutdownWithWorkers: cfg.ShutdownWithWorkers,
			Token:               token,
			SoftLimit:           softLimit,
		}

		cluster, broker, err := setupHA(cmd, addr)
		if err != nil {
			return err
		}
		if cluster != nil {
			defer cluster.Shutdown()
			defer broker.Stop()
			mcfg.Broker = broker
		} else {
			mcfg.Deploy = factory
		}

		m := supervisor.NewMaster(mcfg)

		if cluster != nil {
			stop := deployOnLeadership(m, cluster, broker, factory, deployName)
			defer stop()
		}

		serveMetrics(metricsAddr)
		collector := metrics.NewCollector(m.Runtime().Broker(), m.Runtime())
		collector.Start(metricsPollInterval)
		defer collector.Stop()

		telemetry := metrics.NewTelemetryEmitter(m.Runtime().Broker(), telemetryOn || cfg.Telemetry)
		telemetry.Start()
		defer telemetry.Stop()

		code, err := m.Run(context.Background())
		exitCode = int(code)
		return err
	},
}

func init() {
	masterCmd.Flags().String("addr", "master-1", "This master's cluster address/identity")
	masterCmd.Flags().String("bind-addr", "", "Address the transport server listens on (defaults to addr)")
	masterCmd.Flags().String("token", "", "Join token presented to connecting workers")
	masterCmd.Flags().String("deploy", "", "Name of a registered workflow to deploy on startup")
	masterCmd.Flags().String("worker-file", "", "YAML file listing worker addresses (an alternative to positional args)")
	masterCmd.Flags().Bool("shutdown-with-workers", false, "Terminate when any connected worker disconnects")
	masterCmd.Flags().Int("soft-limit", 0, "Per-worker mailbox soft limit (0 disables the check)")

	masterCmd.Flags().String("ha-bind-addr", "", "Raft bind address; enables master HA (pkg/ha) when set")
	masterCmd.Flags().String("ha-data-dir", "./ha-data", "Directory for this node's Raft log and snapshots")
	masterCmd.Flags().StringArray("ha-peer", nil, "Other HA peer as id=addr (repeatable); this node is added under --addr")
	masterCmd.Flags().Bool("ha-bootstrap", false, "Bootstrap a new HA cluster from --ha-peer on first startup")
}

// setupHA brings up a pkg/ha Cluster when --ha-bind-addr is set,
// replicating which workflow this master tier has deployed across the
// --ha-peer set so a newly elected leader knows what to redeploy. It
// returns nil, nil, nil when HA is not configured, in which case the
// caller should fall back to MasterConfig.Deploy's plain startup deploy.
func setupHA(cmd *cobra.Command, addr string) (*ha.Cluster, *events.Broker, error) {
	haBindAddr, _ := cmd.Flags().GetString("ha-bind-addr")
	if haBindAddr == "" {
		return nil, nil, nil
	}

	haDataDir, _ := cmd.Flags().GetString("ha-data-dir")
	haPeerFlags, _ := cmd.Flags().GetStringArray("ha-peer")
	haBootstrap, _ := cmd.Flags().GetBool("ha-bootstrap")

	peers := []ha.Peer{{ID: addr, Addr: haBindAddr}}
	for _, p := range haPeerFlags {
		id, peerAddr, ok := strings.Cut(p, "=")
		if !ok {
			return nil, nil, fmt.Errorf("cmd/skitter: --ha-peer %q must be id=addr", p)
		}
		peers = append(peers, ha.Peer{ID: id, Addr: peerAddr})
	}

	broker := events.NewBroker()
	broker.Start()

	cluster, err := ha.New(ha.Config{
		NodeID:    addr,
		BindAddr:  haBindAddr,
		DataDir:   haDataDir,
		Peers:     peers,
		Bootstrap: haBootstrap,
		Broker:    broker,
	})
	if err != nil {
		broker.Stop()
		return nil, nil, fmt.Errorf("cmd/skitter: start ha cluster: %w", err)
	}
	return cluster, broker, nil
}

// deployOnLeadership subscribes to broker's EventHALeaderChanged events
// and, each time this node becomes Raft leader, deploys factory's
// workflow and replicates the outcome through cluster so the next
// elected leader inherits the same decision; when this node loses
// leadership it undeploys locally, leaving the replicated state for
// whichever node takes over next. It returns a func that unsubscribes
// and stops the goroutine.
func deployOnLeadership(m *supervisor.Master, cluster *ha.Cluster, broker *events.Broker, factory registry.WorkflowFactory, deployName string) func() {
	logger := log.WithComponent("cmd.skitter.ha")
	sub := broker.Subscribe()

	go func() {
		for ev := range sub {
			if ev.Type != events.EventHALeaderChanged {
				continue
			}

			if ev.Metadata["leader"] != "true" {
				if err := m.Undeploy(); err != nil {
					logger.Warn().Err(err).Msg("undeploy on lost leadership failed")
				}
				continue
			}

			if factory == nil {
				logger.Warn().Msg("elected leader but no --deploy workflow configured")
				continue
			}
			workflow, err := factory()
			if err != nil {
				logger.Warn().Err(err).Msg("ha deploy factory failed")
				continue
			}
			if err := m.Deploy(workflow); err != nil {
				logger.Warn().Err(err).Msg("ha deploy on new leadership failed")
				continue
			}
			if err := cluster.Deploy(deployName); err != nil {
				logger.Warn().Err(err).Msg("ha replicate deploy state failed")
			}
			logger.Info().Str("workflow", deployName).Msg("deployed as newly elected ha leader")
		}
	}()

	return func() { broker.Unsubscribe(sub) }
}
