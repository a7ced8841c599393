// Package metrics exposes Prometheus counters for the trust plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the trust-plane counters registered against one registry.
type Set struct {
	CertificatesIssued prometheus.Counter
	Revocations        prometheus.Counter
	Verifications      *prometheus.CounterVec
}

// New creates and registers the counter set. Pass prometheus.NewRegistry()
// for an isolated set (tests) or prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		CertificatesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "v2x_certificates_issued_total",
			Help: "Certificates issued by the certifying authority.",
		}),
		Revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "v2x_revocations_total",
			Help: "Revocation entries written to the CRL.",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "v2x_verifications_total",
			Help: "Payload verifications by verdict.",
		}, []string{"verdict"}),
	}
	reg.MustRegister(s.CertificatesIssued, s.Revocations, s.Verifications)
	return s
}

// ObserveVerdict counts one verification outcome.
func (s *Set) ObserveVerdict(verdict string) {
	if s == nil {
		return
	}
	s.Verifications.WithLabelValues(verdict).Inc()
}

// ObserveIssued counts one issued certificate.
func (s *Set) ObserveIssued() {
	if s == nil {
		return
	}
	s.CertificatesIssued.Inc()
}

// ObserveRevocation counts one CRL write.
func (s *Set) ObserveRevocation() {
	if s == nil {
		return
	}
	s.Revocations.Inc()
}
