package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Notification-stream metrics.
var (
	wsActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_sessions",
		Help: "Currently open notification WebSocket sessions.",
	})

	wsNotificationsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_notifications_pushed_total",
		Help: "Notification records pushed over WebSocket sessions.",
	})

	wsHeartbeats = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_heartbeats_total",
		Help: "Heartbeat messages pushed over WebSocket sessions.",
	})

	interceptorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interceptor_failures_total",
			Help: "Swallowed audit/notification interceptor branch failures.",
		},
		[]string{"branch"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		wsActiveSessions, wsNotificationsPushed, wsHeartbeats,
		interceptorFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// SessionOpened / SessionClosed track the active WebSocket session gauge.
func SessionOpened() { wsActiveSessions.Inc() }
func SessionClosed() { wsActiveSessions.Dec() }

// NotificationsPushed counts records delivered over live sessions.
func NotificationsPushed(n int) { wsNotificationsPushed.Add(float64(n)) }

// HeartbeatPushed counts heartbeat messages.
func HeartbeatPushed() { wsHeartbeats.Inc() }

// InterceptorFailure counts a swallowed failure in the named branch
// ("audit" or "notification").
func InterceptorFailure(branch string) {
	interceptorFailures.WithLabelValues(branch).Inc()
}

// statusWriter captures the response code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, so
// hijacking and flushing keep working through the instrumented chain.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
