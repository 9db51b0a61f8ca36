package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	checks           *prom.CounterVec
	updates          *prom.CounterVec
	failures         *prom.CounterVec
	resolutions      *prom.CounterVec
	cycleDuration    prom.Histogram
	componentsGauge  prom.Gauge
	updatesAvailable prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.checks = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "plugwatch",
		Name:      "checks_total",
		Help:      "Per-component version checks performed",
	}, []string{"component"})
	pr.updates = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "plugwatch",
		Name:      "updates_total",
		Help:      "Successful component updates applied",
	}, []string{"component"})
	pr.failures = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "plugwatch",
		Name:      "failures_total",
		Help:      "Failed update transactions",
	}, []string{"component"})
	pr.resolutions = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "plugwatch",
		Name:      "resolutions_total",
		Help:      "Latest-release lookups by repository and outcome",
	}, []string{"repo", "result"})
	pr.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "plugwatch",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of full check cycles",
		Buckets:   prom.DefBuckets,
	})
	pr.componentsGauge = prom.NewGauge(prom.GaugeOpts{
		Namespace: "plugwatch",
		Name:      "components_tracked",
		Help:      "Components currently registered",
	})
	pr.updatesAvailable = prom.NewGauge(prom.GaugeOpts{
		Namespace: "plugwatch",
		Name:      "updates_available",
		Help:      "Components currently flagged as needing an update",
	})

	reg.MustRegister(pr.checks, pr.updates, pr.failures, pr.resolutions,
		pr.cycleDuration, pr.componentsGauge, pr.updatesAvailable)
	return pr
}

func (pr *PrometheusRecorder) IncCheck(component string) { pr.checks.WithLabelValues(component).Inc() }
func (pr *PrometheusRecorder) IncUpdate(component string) {
	pr.updates.WithLabelValues(component).Inc()
}
func (pr *PrometheusRecorder) IncFailure(component string) {
	pr.failures.WithLabelValues(component).Inc()
}

func (pr *PrometheusRecorder) IncResolution(repo string, found bool) {
	result := "found"
	if !found {
		result = "absent"
	}
	pr.resolutions.WithLabelValues(repo, result).Inc()
}

func (pr *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	pr.cycleDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) SetComponentsTracked(n int) { pr.componentsGauge.Set(float64(n)) }
func (pr *PrometheusRecorder) SetUpdatesAvailable(n int)  { pr.updatesAvailable.Set(float64(n)) }

// Handler returns an http.Handler serving the recorder's registry.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
