package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skitter-run/skitter/pkg/log"
	"github.com/skitter-run/skitter/pkg/metrics"
	"github.com/skitter-run/skitter/pkg/registry"
)

// metricsPollInterval is how often metrics.Collector polls WorkerCount
// for the nodes this CLI starts, independent of cluster-event-driven
// metrics which update immediately.
const metricsPollInterval = 5 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(exitCode))
}

// exitCode is set by whichever subcommand actually ran a mode supervisor
// to Run's ExitCode (spec.md §6: 0 normal, 4 peer disconnected). RunE can
// only report an error to cobra, not a numeric code, so the subcommands
// stash it here on their way out.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "skitter",
	Short: "Skitter - a distributed reactive stream-processing runtime",
	Long: `Skitter deploys a descriptor-defined workflow of reactive workers
across one process (local mode) or a master/worker cluster, and keeps
them wired together with FIFO, per-pair-ordered delivery.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML/JSON/TOML config file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve /metrics, /health, /ready and /live on (disabled if empty)")
	rootCmd.PersistentFlags().Bool("telemetry", false, "Enable OpenTelemetry spans for cluster events")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(localCmd)
	rootCmd.AddCommand(deployCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// examples is the process-wide registry of demo workflow factories that
// `--deploy NAME` and the `deploy` config key resolve against. A real
// embedding application would register its own descriptors here instead;
// this binary only ships the ones needed to exercise spec.md §8's
// scenarios end to end.
var examples = registry.New()

// serveMetrics mounts /metrics, /health, /ready, /live on addr in the
// background, if addr is non-empty. Errors are logged, not fatal: a
// metrics server failing to bind shouldn't take the whole node down.
func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("cmd.skitter").Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.WithComponent("cmd.skitter").Info().Str("addr", addr).Msg("metrics endpoint listening")
}
