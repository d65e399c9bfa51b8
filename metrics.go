package auth

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hotel_auth"

// Metrics counts authentication outcomes. A nil *Metrics is a valid no-op.
type Metrics struct {
	verifications *prometheus.CounterVec
	logins        *prometheus.CounterVec
	roleChecks    *prometheus.CounterVec
}

// NewMetrics creates the auth counters and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verifications_total",
			Help:      "Bearer token verifications by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Password logins by outcome.",
		}, []string{"outcome"}),
		roleChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "role_checks_total",
			Help:      "Admin role gate checks by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.verifications, m.logins, m.roleChecks} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) observeVerification(err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcomeLabel(err)).Inc()
}

func (m *Metrics) observeLogin(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcomeLabel(err)).Inc()
}

func (m *Metrics) observeRoleCheck(err error) {
	if m == nil {
		return
	}
	m.roleChecks.WithLabelValues(outcomeLabel(err)).Inc()
}

// outcomeLabel keeps label cardinality bounded to the known text codes
func outcomeLabel(err error) string {
	if err == nil {
		return "accepted"
	}
	switch ClassifyError(err) {
	case KindDependency:
		return "dependency_failure"
	}
	for _, code := range []string{
		TextCodeTokenMissing,
		TextCodeTokenInvalid,
		TextCodeTokenExpired,
		TextCodeUserNotFound,
		TextCodeAccountDisabled,
		TextCodeInvalidCredentials,
		TextCodeAdminRequired,
		TextCodePrincipalNotFound,
	} {
		if HasTextCode(err, code) {
			return strings.ToLower(code)
		}
	}
	return "rejected"
}
