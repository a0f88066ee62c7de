package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skitter-run/skitter/pkg/metrics"
	"github.com/skitter-run/skitter/pkg/supervisor"
)

var workerCmd = &cobra.Command{
	Use:   "worker [master_address]",
	Short: "Run a worker node, waiting for a master to attach",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "tags")
		if err != nil {
			return err
		}

		masterAddr := cfg.Master
		if len(args) > 0 {
			masterAddr = args[0]
		}

		noShutdownWithMaster, _ := cmd.Flags().GetBool("no-shutdown-with-master")
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		token, _ := cmd.Flags().GetString("token")
		softLimit, _ := cmd.Flags().GetInt("soft-limit")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		telemetryOn, _ := cmd.Flags().GetBool("telemetry")

		w := supervisor.NewWorker(supervisor.WorkerConfig{
			NodeID:               nodeID,
			BindAddr:             bindAddr,
			MasterAddr:           masterAddr,
			Token:                token,
			Tags:                 cfg.Tags,
			NoShutdownWithMaster: noShutdownWithMaster,
			SoftLimit:            softLimit,
		})

		serveMetrics(metricsAddr)
		collector := metrics.NewCollector(w.Runtime().Broker(), w.Runtime())
		collector.Start(metricsPollInterval)
		defer collector.Stop()

		telemetry := metrics.NewTelemetryEmitter(w.Runtime().Broker(), telemetryOn || cfg.Telemetry)
		telemetry.Start()
		defer telemetry.Stop()

		code, err := w.Run(context.Background())
		exitCode = int(code)
		return err
	},
}

func init() {
	workerCmd.Flags().String("node-id", "worker-1", "This worker's cluster address/identity")
	workerCmd.Flags().String("bind-addr", "", "Address the transport server listens on (defaults to node-id)")
	workerCmd.Flags().String("token", "", "Join token presented to the master")
	workerCmd.Flags().StringSlice("tags", []string{}, "Symbols advertised to masters")
	workerCmd.Flags().Bool("no-shutdown-with-master", false, "Do not terminate when the master disconnects")
	workerCmd.Flags().Int("soft-limit", 0, "Per-worker mailbox soft limit (0 disables the check)")
}
