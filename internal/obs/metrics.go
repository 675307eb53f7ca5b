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

// Auth subsystem metrics.
var (
	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	otpFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_failures_total",
			Help: "OTP verification failures by flow.",
		},
		[]string{"flow"},
	)

	tokensRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Tokens recorded in the revocation store.",
	})

	emailsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_emails_enqueued_total",
		Help: "Notification emails accepted for delivery.",
	})

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_emails_sent_total",
			Help: "Notification email delivery results.",
		},
		[]string{"outcome"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttempts, otpFailures, tokensRevoked, emailsEnqueued, emailsSent,
	)
}

// IncLogin records a login attempt outcome ("success", "invalid", "blocked").
func IncLogin(outcome string) { loginAttempts.WithLabelValues(outcome).Inc() }

// IncOTPFailure records a rejected OTP for the given flow.
func IncOTPFailure(flow string) { otpFailures.WithLabelValues(flow).Inc() }

// IncTokenRevoked records a new revocation entry.
func IncTokenRevoked() { tokensRevoked.Inc() }

// IncEmailEnqueued records a notification accepted by the dispatcher.
func IncEmailEnqueued() { emailsEnqueued.Inc() }

// IncEmailSent records a delivery outcome ("ok", "error", "dropped").
func IncEmailSent(outcome string) { emailsSent.WithLabelValues(outcome).Inc() }

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps next with request count/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
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

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
