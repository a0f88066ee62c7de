package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skitter-run/skitter/pkg/metrics"
	"github.com/skitter-run/skitter/pkg/supervisor"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run every component in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "deploy")
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
		softLimit, _ := cmd.Flags().GetInt("soft-limit")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		telemetryOn, _ := cmd.Flags().GetBool("telemetry")

		l := supervisor.NewLocal(supervisor.LocalConfig{
			Addr:      addr,
			SoftLimit: softLimit,
			Deploy:    factory,
		})

		serveMetrics(metricsAddr)
		collector := metrics.NewCollector(l.Runtime().Broker(), l.Runtime())
		collector.Start(metricsPollInterval)
		defer collector.Stop()

		telemetry := metrics.NewTelemetryEmitter(l.Runtime().Broker(), telemetryOn || cfg.Telemetry)
		telemetry.Start()
		defer telemetry.Stop()

		code, err := l.Run(context.Background())
		exitCode = int(code)
		return err
	},
}

func init() {
	localCmd.Flags().String("addr", "local", "This process's identity in logs and worker handles")
	localCmd.Flags().String("deploy", "", "Name of a registered workflow to deploy on startup")
	localCmd.Flags().Int("soft-limit", 0, "Per-worker mailbox soft limit (0 disables the check)")
}
