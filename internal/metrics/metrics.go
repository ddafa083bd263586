package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "surge"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing
type Metrics struct {
	registry *prometheus.Registry

	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	runDuration  prometheus.Histogram
	avgLatency   prometheus.Histogram
}

// New registers the collectors on a registry of their own, so several instances can coexist in tests
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of load test runs started.",
		}),
		runsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of load test runs finished, by terminal state.",
		}, []string{"state"}),
		runsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Current number of running load tests.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests issued by finished runs.",
		}, []string{"result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total number of transport failures of finished runs, by kind.",
		}, []string{"kind"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of finished runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		}),
		avgLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_average_latency_seconds",
			Help:      "Average request latency of finished runs.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.runsActive.Inc()
}

// RunFinished records the end of a run. res is nil for a failed run
func (m *Metrics) RunFinished(state loadtest.RunState, res *loadtest.RunResult) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runsFinished.WithLabelValues(string(state)).Inc()
	if res == nil {
		return
	}
	m.requests.WithLabelValues("succeeded").Add(float64(res.Succeeded))
	m.requests.WithLabelValues("failed").Add(float64(res.Failed))
	for kind, n := range res.Errors {
		m.errors.WithLabelValues(string(kind)).Add(float64(n))
	}
	m.runDuration.Observe(res.ElapsedMs / 1000)
	if res.Total > 0 {
		m.avgLatency.Observe(res.AverageLatencyMs / 1000)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
