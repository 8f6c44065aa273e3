package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusRecorder records engine metrics into its own registry.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
}

func NewPrometheusRecorder() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refdata_http_requests_total",
			Help: "Total number of API requests by method and outcome",
		}, []string{"method", "outcome"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "refdata_http_request_seconds",
			Help:    "API request duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refdata_http_retries_total",
			Help: "Total number of retried API attempts",
		}, []string{"method"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refdata_cache_lookups_total",
			Help: "Response cache lookups by result",
		}, []string{"hit"}),
	}

	p.registry.MustRegister(p.requestsTotal, p.requestSeconds, p.retriesTotal, p.cacheTotal)
	return p
}

func (p *PrometheusRecorder) IncRequest(method, outcome string) {
	p.requestsTotal.WithLabelValues(method, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRequestSeconds(method, outcome string, seconds float64) {
	p.requestSeconds.WithLabelValues(method, outcome).Observe(seconds)
}

func (p *PrometheusRecorder) IncRetry(method string) {
	p.retriesTotal.WithLabelValues(method).Inc()
}

func (p *PrometheusRecorder) IncCache(hit bool) {
	p.cacheTotal.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves /metrics and /healthz.
func (p *PrometheusRecorder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve starts the metrics listener in the background. The returned func shuts it down.
func (p *PrometheusRecorder) Serve(addr string, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("Metrics listener started", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
