// Package metrics exposes authentication outcomes as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements auth.Metrics and social.Metrics.
type Collector struct {
	logins        *prometheus.CounterVec
	reissues      *prometheus.CounterVec
	resets        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	keySetFetches *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by method and result.",
		}, []string{"method", "result"}),
		reissues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_reissue_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_reset_total",
			Help: "Password reset requests and redemptions by result.",
		}, []string{"stage", "result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_social_verification_total",
			Help: "Social token verifications by provider and result.",
		}, []string{"provider", "result"}),
		keySetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_social_jwks_fetch_total",
			Help: "Provider key set downloads by provider and result.",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.logins,
		c.reissues,
		c.resets,
		c.verifications,
		c.keySetFetches,
	)
	return c
}

func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

func (c *Collector) RecordReissue(result string) {
	c.reissues.WithLabelValues(result).Inc()
}

func (c *Collector) RecordPasswordReset(stage, result string) {
	c.resets.WithLabelValues(stage, result).Inc()
}

func (c *Collector) RecordVerification(provider, result string) {
	c.verifications.WithLabelValues(provider, result).Inc()
}

func (c *Collector) RecordKeySetFetch(provider, result string) {
	c.keySetFetches.WithLabelValues(provider, result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
