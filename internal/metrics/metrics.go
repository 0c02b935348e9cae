package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	OptimizeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lahc_runs_total", Help: "Optimization runs by outcome."},
		[]string{"status"},
	)
	OptimizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "lahc_run_duration_seconds", Help: "Wall time of an optimization run, all restarts included.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 10)},
	)
	// OptimizeIterations observes accepted-test iterations per restart
	OptimizeIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "lahc_iterations", Help: "Search iterations per restart.", Buckets: prometheus.ExponentialBuckets(10, 4, 10)},
	)
	OptimizeImprovement = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "lahc_improvement_ratio", Help: "1 - best/initial cost of the winning restart.", Buckets: prometheus.LinearBuckets(0, 0.1, 11)},
	)
	// BestCost is the cheapest route found by the latest run of each named case
	BestCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "lahc_best_cost", Help: "Best route cost of the latest run per case."},
		[]string{"case"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimize_rate_limited_total", Help: "Optimize requests rejected by the rate limiter."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(OptimizeRuns, OptimizeDuration, OptimizeIterations, OptimizeImprovement, BestCost, RateLimited)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
