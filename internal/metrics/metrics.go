// Package metrics defines the Prometheus collectors of the transport API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pkordes/patient-transport/internal/domain"
)

const namespace = "transport"

// Metrics holds every collector. Build one with New and share it.
type Metrics struct {
	assignmentsRejected *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	overCapacity        prometheus.Counter
	requestDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assignmentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_rejected_total",
			Help:      "Assignment attempts rejected by a business rule.",
		}, []string{"reason"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_status_transitions_total",
			Help:      "Successful trip status transitions.",
		}, []string{"from", "to"}),
		overCapacity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_over_capacity_total",
			Help:      "Vehicle changes that left a trip with more patients than seats.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.assignmentsRejected, m.statusTransitions, m.overCapacity, m.requestDuration)
	return m
}

// AssignmentRejected counts a rejected assignment by rule.
func (m *Metrics) AssignmentRejected(reason string) {
	m.assignmentsRejected.WithLabelValues(reason).Inc()
}

// StatusChanged counts a successful status transition.
func (m *Metrics) StatusChanged(from, to domain.Status) {
	m.statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// OverCapacity counts a trip pushed over capacity by a vehicle change.
func (m *Metrics) OverCapacity() {
	m.overCapacity.Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
