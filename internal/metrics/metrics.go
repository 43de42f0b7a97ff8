// Package metrics exposes scoring-engine observations to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
)

const namespace = "domainscore"

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry      *prometheus.Registry
	probeFailures *prometheus.CounterVec
	analyses      *prometheus.HistogramVec
	passScored    prometheus.Gauge
	passFailed    prometheus.Gauge
	passes        prometheus.Counter
}

var _ ports.Metrics = (*Prometheus)(nil)

// New registers the collectors along with Go runtime and process metrics.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Probe runs that fell back to their default value.",
		}, []string{"probe"}),
		analyses: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of single-domain analyses by resulting status.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"status"}),
		passScored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_scored",
			Help:      "Domains scored by the most recent pass.",
		}),
		passFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_failed",
			Help:      "Domains that ended in error status in the most recent pass.",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Completed scoring passes.",
		}),
	}

	p.registry.MustRegister(
		p.probeFailures, p.analyses, p.passScored, p.passFailed, p.passes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ProbeFailed(probe string) {
	p.probeFailures.WithLabelValues(probe).Inc()
}

func (p *Prometheus) AnalysisCompleted(status domain.Status, elapsed time.Duration) {
	p.analyses.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (p *Prometheus) PassCompleted(scored, failed int) {
	p.passScored.Set(float64(scored))
	p.passFailed.Set(float64(failed))
	p.passes.Inc()
}

// CacheEntries exports the live size of the in-process result cache.
func (p *Prometheus) CacheEntries(size func() int) {
	p.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Analyses held in the in-process result cache.",
	}, func() float64 { return float64(size()) }))
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry is exposed for tests and additional collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
