package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements JobHooks and CacheHooks with Prometheus collectors
// registered on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	resolveDuration prometheus.Histogram
	closureNodes    prometheus.Gauge
	resolveWarnings prometheus.Counter
	resolveErrors   prometheus.Counter
	cycleBreaks     prometheus.Counter
	archiveEntries  *prometheus.CounterVec
	archiveBytes    *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	cacheBytes      prometheus.Counter
}

// NewPrometheus creates the collectors and registers them.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deployer_resolve_duration_seconds",
			Help:    "Time taken to compute a dependency closure.",
			Buckets: prometheus.DefBuckets,
		}),
		closureNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deployer_closure_nodes",
			Help: "Number of objects in the last computed closure.",
		}),
		resolveWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deployer_resolve_warnings_total",
			Help: "Dependencies skipped with a warning during resolution.",
		}),
		resolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deployer_resolve_errors_total",
			Help: "Closure computations that failed.",
		}),
		cycleBreaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deployer_cycle_breaks_total",
			Help: "Forced cycle breaks during install ordering.",
		}),
		archiveEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_archive_entries_total",
			Help: "Archive entries processed, by operation.",
		}, []string{"op"}),
		archiveBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_archive_bytes_total",
			Help: "Archive entry bytes processed, by operation.",
		}, []string{"op"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_jobs_total",
			Help: "Completed jobs by kind and status.",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deployer_job_duration_seconds",
			Help:    "Job duration by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_cache_requests_total",
			Help: "Report cache requests by key type and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deployer_cache_written_bytes_total",
			Help: "Bytes written to the report cache.",
		}),
	}
	p.registry.MustRegister(
		p.resolveDuration,
		p.closureNodes,
		p.resolveWarnings,
		p.resolveErrors,
		p.cycleBreaks,
		p.archiveEntries,
		p.archiveBytes,
		p.jobsTotal,
		p.jobDuration,
		p.cacheRequests,
		p.cacheBytes,
	)
	return p
}

// Registry returns the registry holding the collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// WriteTextfile writes the current metrics in the text exposition format,
// for collection by the node exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

func (p *Prometheus) OnResolveComplete(_ context.Context, nodes, warnings int, d time.Duration, err error) {
	p.resolveDuration.Observe(d.Seconds())
	if err != nil {
		p.resolveErrors.Inc()
		return
	}
	p.closureNodes.Set(float64(nodes))
	p.resolveWarnings.Add(float64(warnings))
}

func (p *Prometheus) OnOrderComplete(_ context.Context, _ int, broken int) {
	p.cycleBreaks.Add(float64(broken))
}

func (p *Prometheus) OnArchiveEntry(_ context.Context, op string, bytes int64) {
	p.archiveEntries.WithLabelValues(op).Inc()
	p.archiveBytes.WithLabelValues(op).Add(float64(bytes))
}

func (p *Prometheus) OnJobComplete(_ context.Context, kind, status string, d time.Duration) {
	p.jobsTotal.WithLabelValues(kind, status).Inc()
	p.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, _ string, size int) {
	p.cacheBytes.Add(float64(size))
}

var (
	_ JobHooks   = (*Prometheus)(nil)
	_ CacheHooks = (*Prometheus)(nil)
)
