package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "users"

var constLabels = prometheus.Labels{"service": serviceName}

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "users_logins_total",
			Help:        "Total number of login attempts.",
			ConstLabels: constLabels,
		},
		[]string{"method", "result"},
	)

	PinsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "users_pins_issued_total",
			Help:        "Total number of verification PIN issuance attempts.",
			ConstLabels: constLabels,
		},
		[]string{"purpose", "result"},
	)

	PinValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "users_pin_validations_total",
			Help:        "Total number of verification PIN validation attempts.",
			ConstLabels: constLabels,
		},
		[]string{"purpose", "result"},
	)

	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "users_registrations_total",
			Help:        "Total number of account creation attempts.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// MustRegister adds the collectors to the default registry. Safe to call
// more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			LoginsTotal,
			PinsIssuedTotal,
			PinValidationsTotal,
			RegistrationsTotal,
		)
	})
}
