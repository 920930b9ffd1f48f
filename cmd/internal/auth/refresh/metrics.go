package refresh

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-session refresh outcomes and run durations.
type Metrics struct {
	sessions *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the refresh job collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbot_refresh_sessions_total",
			Help: "Sessions processed by the refresh job, by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webbot_refresh_job_duration_seconds",
			Help:    "Wall-clock duration of one full refresh run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.duration)
	}
	return m
}
