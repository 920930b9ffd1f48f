package upstream

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts upstream requests by operation and classified outcome.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers the upstream request counter on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webbot_upstream_requests_total",
			Help: "Upstream calls by operation and classified outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (c *Client) count(op string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.requests.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrHTTP):
		return "http_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
