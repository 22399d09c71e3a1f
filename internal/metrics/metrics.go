// Package metrics exposes Prometheus counters for the authentication layer. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	logins        *prometheus.CounterVec
	lockouts      prometheus.Counter
	handoffs      *prometheus.CounterVec
	sessionsSwept prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surface_auth",
			Name:      "login_attempts_total",
			Help:      "Credential verification attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surface_auth",
			Name:      "lockout_rejections_total",
			Help:      "Attempts rejected because the login identifier is locked out.",
		}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surface_auth",
			Name:      "handoff_total",
			Help:      "Handoff token issue and redeem operations by surface and outcome.",
		}, []string{"stage", "surface", "outcome"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surface_auth",
			Name:      "sessions_swept_total",
			Help:      "Idle sessions removed by the background sweeper.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surface_auth",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(m.logins, m.lockouts, m.handoffs, m.sessionsSwept, m.httpRequests)
	return m
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LockoutRejected() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// Handoff counts one issue or redeem operation. stage is "issue" or "redeem".
func (m *Metrics) Handoff(stage, surface, outcome string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(stage, surface, outcome).Inc()
}

func (m *Metrics) SessionsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
