package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	registry      *prom.Registry
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	entryResults  *prom.CounterVec
	staleEntries  prom.Gauge
	freshEntries  prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "tplgen",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tplgen",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.entryResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tplgen",
			Name:      "entry_results_total",
			Help:      "Template entry results by pipeline and outcome",
		}, []string{"kind", "result"})
		pr.staleEntries = prom.NewGauge(prom.GaugeOpts{
			Namespace: "tplgen",
			Name:      "stale_entries",
			Help:      "Stale entries in the last partition",
		})
		pr.freshEntries = prom.NewGauge(prom.GaugeOpts{
			Namespace: "tplgen",
			Name:      "fresh_entries",
			Help:      "Fresh entries in the last partition",
		})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.entryResults, pr.staleEntries, pr.freshEntries)
	})
	return pr
}

// Registry exposes the backing registry for HTTP serving.
func (pr *PrometheusRecorder) Registry() *prom.Registry {
	return pr.registry
}

func (pr *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	pr.buildDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncBuildOutcome(outcome string) {
	pr.buildOutcome.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) IncEntryResult(kind EntryKind, result ResultLabel) {
	pr.entryResults.WithLabelValues(string(kind), string(result)).Inc()
}

func (pr *PrometheusRecorder) SetPartitionSizes(stale, fresh int) {
	pr.staleEntries.Set(float64(stale))
	pr.freshEntries.Set(float64(fresh))
}
