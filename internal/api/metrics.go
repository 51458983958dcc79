package api

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the process's counters/gauges, registered against a private
// registry so tests can build a Server without colliding with the default
// global registry.
type metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	downloadsTotal    *prometheus.CounterVec
	searchesTotal     prometheus.Counter
	queueDepth        prometheus.GaugeFunc
}

func newMetrics(queueDepthFn func() float64) *metrics {
	registry := prometheus.NewRegistry()

	m := &metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackgrab_http_requests_total",
			Help: "Total HTTP requests handled, by route and status class.",
		}, []string{"route", "status_class"}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackgrab_downloads_total",
			Help: "Total download jobs, by terminal status.",
		}, []string{"status"}),
		searchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackgrab_extractor_searches_total",
			Help: "Total extractor search calls issued.",
		}),
	}

	m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "trackgrab_scheduler_queue_depth",
		Help: "Number of jobs the scheduler currently tracks as queued or running.",
	}, queueDepthFn)

	registry.MustRegister(m.httpRequestsTotal, m.downloadsTotal, m.searchesTotal, m.queueDepth)

	return m
}
