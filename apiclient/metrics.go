package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "moviezone_client"

// Token refresh outcomes
const (
	refreshSuccess  = "success"
	refreshRejected = "rejected"
	refreshNoToken  = "no_refresh_token"
	refreshError    = "error"
)

// Metrics counts client activity. A nil *Metrics records nothing.
type Metrics struct {
	Requests       *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
	SessionExpired prometheus.Counter
}

// NewMetrics creates the client collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests sent to the backend by method and status code (\"error\" when no response arrived).",
		}, []string{"method", "code"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		SessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_expired_total",
			Help:      "Sessions cleared because they could not be recovered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.TokenRefreshes, m.SessionExpired)
	}
	return m
}

func (m *Metrics) request(method string, status int) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(method, code).Inc()
}

func (m *Metrics) refresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sessionExpired() {
	if m == nil {
		return
	}
	m.SessionExpired.Inc()
}
