package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Booking metrics
	bookingOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Total number of booking operations by outcome",
		},
		[]string{"operation", "outcome", "service"},
	)

	slotQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_queries_total",
			Help: "Total number of availability queries",
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		bookingOperationsTotal,
		slotQueriesTotal,
	)
}

// MetricsCollector records service metrics
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	return &MetricsCollector{serviceName: serviceName}
}

// RecordHTTPRequest records an HTTP request observation
func (mc *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode), mc.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, mc.serviceName).Observe(duration.Seconds())
}

// RecordBookingOperation records the outcome of a booking mutation
func (mc *MetricsCollector) RecordBookingOperation(operation, outcome string) {
	bookingOperationsTotal.WithLabelValues(operation, outcome, mc.serviceName).Inc()
}

// RecordSlotQuery records an availability query
func (mc *MetricsCollector) RecordSlotQuery() {
	slotQueriesTotal.WithLabelValues(mc.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments an HTTP handler with request metrics
func (mc *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		mc.RecordHTTPRequest(r.Method, r.URL.Path, recorder.statusCode, time.Since(start))
	})
}
