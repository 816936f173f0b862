package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster topology metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridmesh_nodes_total",
			Help: "Total number of nodes by type and status",
		},
		[]string{"type", "status"},
	)

	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_clusters_total",
			Help: "Total number of edge clusters",
		},
	)

	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridmesh_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	QueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_queue_length",
			Help: "Number of tasks waiting for placement",
		},
	)

	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_tasks_scheduled_total",
			Help: "Total number of task assignments made",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		},
	)

	TasksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_tasks_failed_total",
			Help: "Total number of tasks that failed terminally",
		},
	)

	TaskRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_task_retries_total",
			Help: "Total number of task retry requeues",
		},
	)

	DispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_dispatch_failures_total",
			Help: "Total number of failed command sends to nodes",
		},
	)

	Migrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_migrations_total",
			Help: "Total number of tasks migrated off a node",
		},
	)

	NodeTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_node_timeouts_total",
			Help: "Total number of nodes marked offline by heartbeat timeout",
		},
	)

	// Job metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridmesh_jobs_total",
			Help: "Total number of jobs by status",
		},
		[]string{"status"},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridmesh_scheduling_pass_duration_seconds",
			Help:    "Duration of one scheduling pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulingPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmesh_scheduling_passes_total",
			Help: "Total number of scheduling passes",
		},
	)

	// Rollup metrics from the coordinator snapshot
	ClusterUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_cluster_utilization_percent",
			Help: "Mean node load across active nodes",
		},
	)

	AverageTaskTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_average_task_time_seconds",
			Help: "Mean execution time of completed tasks",
		},
	)

	Throughput = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_throughput_per_minute",
			Help: "Task completions in the configured throughput window, per minute",
		},
	)

	ErrorRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridmesh_error_rate",
			Help: "failed / (failed + completed) over the coordinator lifetime",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridmesh_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(QueueLength)
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(TaskRetries)
	prometheus.MustRegister(DispatchFailures)
	prometheus.MustRegister(Migrations)
	prometheus.MustRegister(NodeTimeouts)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(SchedulingPasses)
	prometheus.MustRegister(ClusterUtilization)
	prometheus.MustRegister(AverageTaskTime)
	prometheus.MustRegister(Throughput)
	prometheus.MustRegister(ErrorRate)
	prometheus.MustRegister(APIRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
