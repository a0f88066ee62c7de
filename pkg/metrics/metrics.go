package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_nodes_connected",
			Help: "Number of peer nodes currently connected to this node's transport",
		},
	)

	WorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_workers_active",
			Help: "Number of local workers currently running on this node",
		},
	)

	WorkflowNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_workflow_nodes_total",
			Help: "Number of nodes in the currently bound workflow",
		},
	)

	// Delivery metrics
	MailboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skitter_worker_mailbox_depth",
			Help: "Last observed mailbox depth for a worker, sampled whenever it exceeds its soft limit",
		},
		[]string{"worker_id"},
	)

	MailboxSoftLimitExceededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skitter_mailbox_soft_limit_exceeded_total",
			Help: "Total number of times a worker's mailbox depth exceeded its soft limit",
		},
	)

	DeliveryDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_delivery_dropped_total",
			Help: "Total number of emitted values dropped for lack of a destination, by node and port",
		},
		[]string{"node_id", "port"},
	)

	WorkerCrashesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skitter_worker_crashes_total",
			Help: "Total number of worker process activations that raised and killed their worker",
		},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_deployments_total",
			Help: "Total number of deployment attempts, by outcome",
		},
		[]string{"outcome"},
	)

	DeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skitter_deployment_duration_seconds",
			Help:    "Time taken for deploy.Engine.Deploy to run a workflow's deploy hooks",
			Buckets: prometheus.DefBuckets,
		},
	)

	UndeploymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skitter_undeployments_total",
			Help: "Total number of undeploy operations completed",
		},
	)

	// Callback invocation metrics
	CallbackInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skitter_callback_invocations_total",
			Help: "Total number of callback invocations, by operation and callback name",
		},
		[]string{"operation", "callback"},
	)

	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skitter_callback_duration_seconds",
			Help:    "Callback invocation duration in seconds, by operation and callback name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "callback"},
	)

	// High-availability metrics (pkg/ha)
	HALeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skitter_ha_leader",
			Help: "1 if this node is the current Raft leader for the master HA cluster, 0 otherwise",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skitter_ha_raft_apply_duration_seconds",
			Help:    "Time taken for a pkg/ha Cluster Deploy/Undeploy command to commit through Raft",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(NodesConnected)
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(WorkflowNodesTotal)
	prometheus.MustRegister(MailboxDepth)
	prometheus.MustRegister(MailboxSoftLimitExceededTotal)
	prometheus.MustRegister(DeliveryDroppedTotal)
	prometheus.MustRegister(WorkerCrashesTotal)
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(DeploymentDuration)
	prometheus.MustRegister(UndeploymentsTotal)
	prometheus.MustRegister(CallbackInvocationsTotal)
	prometheus.MustRegister(CallbackDuration)
	prometheus.MustRegister(HALeader)
	prometheus.MustRegister(RaftApplyDuration)
}

// Handler returns the Prometheus HTTP handler, mounted at /metrics by
// mode supervisors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
