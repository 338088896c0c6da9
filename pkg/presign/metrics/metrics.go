package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Namespace prefixes every metric name.
const Namespace = "presign"

// RequestMetrics captures per-route HTTP metrics.
type RequestMetrics interface {
	ObserveRequest(method, route, status string, elapsed time.Duration)
}

// Noop implements presign.Observer and RequestMetrics without emitting anything.
type Noop struct {
	presign.NoopObserver
}

// ObserveRequest implements RequestMetrics.
func (Noop) ObserveRequest(string, string, string, time.Duration) {}

// Prom implements presign.Observer and RequestMetrics backed by Prometheus
// collectors registered on its own registry.
type Prom struct {
	registry       *prometheus.Registry
	grants         *prometheus.CounterVec
	failures       *prometheus.CounterVec
	provisioning   *prometheus.CounterVec
	storeCalls     *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

var (
	_ presign.Observer = (*Prom)(nil)
	_ RequestMetrics   = (*Prom)(nil)
)

// NewProm creates a Prom with its collectors registered on a fresh registry.
func NewProm() *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "grants_total",
			Help:      "Presigned URLs issued by method",
		}, []string{"method"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Failed requests by error code",
		}, []string{"code"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bucket_provision_total",
			Help:      "Bucket provisioning checks by outcome",
		}, []string{"outcome"}),
		storeCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "store_call_seconds",
			Help:      "Object store call latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.registry.MustRegister(
		p.grants, p.failures, p.provisioning, p.storeCalls, p.requests, p.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// GrantIssued implements presign.Observer.
func (p *Prom) GrantIssued(method string) {
	p.grants.WithLabelValues(method).Inc()
}

// RequestFailed implements presign.Observer.
func (p *Prom) RequestFailed(code string) {
	p.failures.WithLabelValues(code).Inc()
}

// BucketEnsured implements presign.Observer.
func (p *Prom) BucketEnsured(outcome string) {
	p.provisioning.WithLabelValues(outcome).Inc()
}

// StoreCall implements presign.Observer.
func (p *Prom) StoreCall(op string, elapsed time.Duration, _ error) {
	p.storeCalls.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRequest implements RequestMetrics.
func (p *Prom) ObserveRequest(method, route, status string, elapsed time.Duration) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry exposes the registry, mainly for tests.
func (p *Prom) Registry() *prometheus.Registry { return p.registry }

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
