package authapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts login attempts by outcome.
type Metrics struct {
	logins *prometheus.CounterVec
}

// NewMetrics registers the login counter on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbot_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.logins)
	}
	return m
}
