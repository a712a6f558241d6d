package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_notify"

// Metrics holds the Prometheus collectors for the API and the notification sweep.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec // labels: method, route, status

	OTPIssued      prometheus.Counter
	OTPValidations *prometheus.CounterVec // labels: result={valid,invalid}

	SweepRuns     *prometheus.CounterVec // labels: outcome={completed,overlap,failed,cancelled}
	SweepEmails   *prometheus.CounterVec // labels: outcome={sent,skipped,failed}
	SweepDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		OTPIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time passwords generated and emailed.",
		}),
		OTPValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_validations_total",
			Help:      "OTP validation attempts by result.",
		}, []string{"result"}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Notification sweeps by outcome.",
		}, []string{"outcome"}),
		SweepEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_emails_total",
			Help:      "Per-subscriber sweep results.",
		}, []string{"outcome"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a complete notification sweep.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequests,
		m.OTPIssued,
		m.OTPValidations,
		m.SweepRuns,
		m.SweepEmails,
		m.SweepDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build
// as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		HTTPRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		OTPIssued:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "otp_issued_total"}),
		OTPValidations: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "otp_validations_total"}, []string{"result"}),
		SweepRuns:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sweep_runs_total"}, []string{"outcome"}),
		SweepEmails:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sweep_emails_total"}, []string{"outcome"}),
		SweepDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "sweep_duration_seconds"}),
	}
}
