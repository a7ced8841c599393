package authority

import (
	"fmt"
	"time"
)

// Code classifies the outcome of payload verification. A non-Verified code
// is an expected protocol outcome, not an error: callers log it and move
// on.
type Code int

const (
	// Verified means every pipeline stage passed.
	Verified Code = iota
	// MalformedCertificate means the payload's certificate failed to decode.
	MalformedCertificate
	// CertNotTrusted means the certificate is not signed by the root CA.
	CertNotTrusted
	// CertExpiredOrNotYetValid means now lies outside the validity window.
	CertExpiredOrNotYetValid
	// CertRevoked means the certificate's serial is on the CRL.
	CertRevoked
	// SignatureInvalid means the message signature failed under the
	// certificate's public key.
	SignatureInvalid
)

// String returns the stable label used in logs and metrics.
func (c Code) String() string {
	switch c {
	case Verified:
		return "verified"
	case MalformedCertificate:
		return "malformed_certificate"
	case CertNotTrusted:
		return "cert_not_trusted"
	case CertExpiredOrNotYetValid:
		return "cert_expired_or_not_yet_valid"
	case CertRevoked:
		return "cert_revoked"
	case SignatureInvalid:
		return "signature_invalid"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Verdict is the classified result of verifying one payload.
type Verdict struct {
	Code Code

	// Set only when Code is CertRevoked.
	RevocationReason string
	RevokedAt        time.Time
}

// OK reports whether the payload passed every verification stage.
func (v Verdict) OK() bool { return v.Code == Verified }

// String renders a human-readable status line.
func (v Verdict) String() string {
	switch v.Code {
	case Verified:
		return "message verified"
	case MalformedCertificate:
		return "certificate could not be decoded"
	case CertNotTrusted:
		return "certificate not signed by root CA"
	case CertExpiredOrNotYetValid:
		return "certificate expired or not yet valid"
	case CertRevoked:
		return fmt.Sprintf("certificate revoked on %s, reason: %s",
			v.RevokedAt.UTC().Format(time.RFC3339), v.RevocationReason)
	case SignatureInvalid:
		return "message signature could not be verified"
	default:
		return v.Code.String()
	}
}
