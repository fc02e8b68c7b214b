package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the Prometheus collectors the ingestion core defines.
// serve mode constructs a single instance and registers it for /metrics;
// no other component is handed it, so nothing updates these collectors.
type Metrics struct {
	AccountsAvailable        *prometheus.GaugeVec
	UpstreamRequestsTotal    *prometheus.CounterVec
	UpstreamRequestDuration  *prometheus.HistogramVec
	WriterUpsertsTotal       *prometheus.CounterVec
	BackfillRecordsTotal     *prometheus.CounterVec
	BackfillProgress         *prometheus.GaugeVec
	SchedulerJobRunsTotal    *prometheus.CounterVec
	SchedulerJobSkippedTotal *prometheus.CounterVec
}

// NewMetrics constructs every collector under the "satcat" namespace.
func NewMetrics() *Metrics {
	return &Metrics{
		AccountsAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "satcat",
			Subsystem: "accounts",
			Name:      "available",
			Help:      "Number of Space-Track accounts currently in each status.",
		}, []string{"status"}),
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satcat",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream query attempts, by query type and outcome.",
		}, []string{"query_type", "outcome"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "satcat",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream query duration in seconds, by query type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query_type"}),
		WriterUpsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satcat",
			Subsystem: "writer",
			Name:      "upserts_total",
			Help:      "Catalog writer upserts, by entity kind and outcome.",
		}, []string{"entity", "outcome"}),
		BackfillRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satcat",
			Subsystem: "backfill",
			Name:      "records_total",
			Help:      "TLE history records persisted by the backfill engine, by constellation.",
		}, []string{"constellation"}),
		BackfillProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "satcat",
			Subsystem: "backfill",
			Name:      "progress_percent",
			Help:      "Most recently reported backfill completion percentage, by constellation.",
		}, []string{"constellation"}),
		SchedulerJobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satcat",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler job runs, by job id and outcome.",
		}, []string{"job", "outcome"}),
		SchedulerJobSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satcat",
			Subsystem: "scheduler",
			Name:      "job_skipped_total",
			Help:      "Scheduler job fires skipped because a prior run was still in flight.",
		}, []string{"job"}),
	}
}

// Collectors returns every metric as a prometheus.Collector, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AccountsAvailable,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.WriterUpsertsTotal,
		m.BackfillRecordsTotal,
		m.BackfillProgress,
		m.SchedulerJobRunsTotal,
		m.SchedulerJobSkippedTotal,
	}
}

// NewRegistry creates a Prometheus registry with Go/process collectors
// plus every ingestion-specific collector in m.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range m.Collectors() {
		reg.MustRegister(c)
	}
	return reg
}
