package authority

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"time"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

// Verify runs the verification pipeline over a received payload,
// short-circuiting on the first failing stage:
//
//  1. decode the certificate
//  2. check its signature against the root public key
//  3. check the validity window against now
//  4. check the revocation list
//  5. check the payload signature under the certificate's key
//
// now is an explicit input rather than an ambient clock so results are
// deterministic. Verify has no side effects and is safe for concurrent
// use against a shared authority.
func (a *Authority) Verify(p protocol.Payload, now time.Time) Verdict {
	block, _ := pem.Decode([]byte(p.Certificate))
	if block == nil || block.Type != "CERTIFICATE" {
		return Verdict{Code: MalformedCertificate}
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Verdict{Code: MalformedCertificate}
	}

	// The embedded signature covers the unsigned (to-be-signed) body.
	digest := Digest(a.hash, cert.RawTBSCertificate)
	if !ecdsa.VerifyASN1(a.rootPub, digest, cert.Signature) {
		return Verdict{Code: CertNotTrusted}
	}

	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return Verdict{Code: CertExpiredOrNotYetValid}
	}

	// Revocation is permanent and independent of time validity.
	if entry, ok := a.Revocation(cert.SerialNumber.String()); ok {
		return Verdict{
			Code:             CertRevoked,
			RevocationReason: entry.Reason,
			RevokedAt:        entry.RevokedAt,
		}
	}

	subjectKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return Verdict{Code: SignatureInvalid}
	}
	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return Verdict{Code: SignatureInvalid}
	}
	if !ecdsa.VerifyASN1(subjectKey, Digest(a.hash, p.Message), sig) {
		return Verdict{Code: SignatureInvalid}
	}

	return Verdict{Code: Verified}
}
