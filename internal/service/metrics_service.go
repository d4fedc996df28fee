package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// placement advisor.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	analysisTotal   *prometheus.CounterVec
	slotsEvaluated  *prometheus.CounterVec
	slotsInfeasible *prometheus.CounterVec
	slotsEmitted    *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	analysisTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_analyses_total",
		Help: "Total number of placement analyses",
	}, []string{"flow"})

	slotsEvaluated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_slots_evaluated_total",
		Help: "Candidate slots scored across analyses",
	}, []string{"flow"})

	slotsInfeasible := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_slots_infeasible_total",
		Help: "Candidate slots rejected by feasibility rules",
	}, []string{"flow"})

	slotsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_candidates_emitted_total",
		Help: "Candidate slots surfaced to clients after ranking",
	}, []string{"flow"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, analysisTotal, slotsEvaluated, slotsInfeasible, slotsEmitted, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		analysisTotal:   analysisTotal,
		slotsEvaluated:  slotsEvaluated,
		slotsInfeasible: slotsInfeasible,
		slotsEmitted:    slotsEmitted,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAnalysis records one placement analysis run for the given flow.
func (m *MetricsService) ObserveAnalysis(flow string, evaluated, infeasible, emitted int) {
	if m == nil {
		return
	}
	m.analysisTotal.WithLabelValues(flow).Inc()
	m.slotsEvaluated.WithLabelValues(flow).Add(float64(evaluated))
	m.slotsInfeasible.WithLabelValues(flow).Add(float64(infeasible))
	m.slotsEmitted.WithLabelValues(flow).Add(float64(emitted))
}
