package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the workflow engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	schedulerRuns   *prometheus.CounterVec
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

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notification dispatch outcomes",
	}, []string{"outcome"})

	schedulerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_rule_runs_total",
		Help: "Scheduler rule executions",
	}, []string{"rule", "outcome"})

	registry.MustRegister(requestDuration, requestTotal, notifications, schedulerRuns)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		notifications:   notifications,
		schedulerRuns:   schedulerRuns,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": fmt.Sprintf("%d", status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveNotification records one dispatch outcome.
func (s *MetricsService) ObserveNotification(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	s.notifications.WithLabelValues(outcome).Inc()
}

// ObserveSchedulerRun records one rule execution.
func (s *MetricsService) ObserveSchedulerRun(rule string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.schedulerRuns.WithLabelValues(rule, outcome).Inc()
}
