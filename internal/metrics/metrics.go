// Package metrics defines the Prometheus collectors exported by the console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AuthTransitions    *prometheus.CounterVec
	ProfileResolutions *prometheus.CounterVec
	SignInFailures     *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	BackendRequests    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on registerer and serves them
// from gatherer.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		AuthTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeadmin_auth_transitions_total",
				Help: "Auth state transitions by target state",
			},
			[]string{"state"},
		),
		ProfileResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeadmin_profile_resolutions_total",
				Help: "Profile resolver runs by outcome",
			},
			[]string{"outcome"},
		),
		SignInFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeadmin_sign_in_failures_total",
				Help: "Rejected sign-in attempts by kind",
			},
			[]string{"kind"},
		),
		ResolutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "storeadmin_profile_resolution_seconds",
				Help:    "Time spent fetching a profile",
				Buckets: prometheus.DefBuckets,
			},
		),
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeadmin_backend_requests_total",
				Help: "Requests made to the hosted backend by table and status class",
			},
			[]string{"table", "class"},
		),
		gatherer: gatherer,
	}
}

// Transition counts a state transition.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.AuthTransitions.WithLabelValues(state).Inc()
}

// Resolution counts a resolver outcome and its duration in seconds.
func (m *Metrics) Resolution(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ProfileResolutions.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(seconds)
}

// SignInFailure counts a failed sign-in.
func (m *Metrics) SignInFailure(kind string) {
	if m == nil {
		return
	}
	m.SignInFailures.WithLabelValues(kind).Inc()
}

// BackendRequest counts a data API request.
func (m *Metrics) BackendRequest(table, class string) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(table, class).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
