package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for AuthAttempts.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeWrongMethod = "wrong_method"
	OutcomeError       = "error"
)

// Metrics holds the Prometheus collectors for authentication. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	AuthAttempts      *prometheus.CounterVec
	IdentitiesCreated *prometheus.CounterVec
	SessionsRejected  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_auth_attempts_total",
			Help: "Authentication attempts by method and outcome",
		}, []string{"method", "outcome"}),
		IdentitiesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_identities_created_total",
			Help: "Identities created by auth method",
		}, []string{"method"}),
		SessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collab_sessions_rejected_total",
			Help: "Protected requests rejected for a missing or invalid session",
		}),
	}
	reg.MustRegister(m.AuthAttempts, m.IdentitiesCreated, m.SessionsRejected)
	return m
}

func (m *Metrics) ObserveAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) IncIdentityCreated(method string) {
	if m == nil {
		return
	}
	m.IdentitiesCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) IncSessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
}
