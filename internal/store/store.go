// Package store defines the audit persistence interface for the trust
// plane. Implementations (SQLite, in-memory) satisfy the Store interface,
// letting the authority swap backends without changing business logic.
//
// The certificate log is append-only: rotation discards a credential from
// a vehicle's active pool, but the issuance record is retained forever.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for issuance and revocation records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Issued certificates (append-only audit log, keyed by entity).
	AppendCertificate(ctx context.Context, rec *CertificateRecord) error
	ListCertificates(ctx context.Context, entityID string) ([]*CertificateRecord, error)

	// Revocations. SaveRevocation is a keyed upsert: revoking a serial a
	// second time overwrites the earlier entry.
	SaveRevocation(ctx context.Context, rec *RevocationRecord) error
	ListRevocations(ctx context.Context) ([]*RevocationRecord, error)

	// Close releases database resources.
	Close() error
}

// CertificateRecord is the persistent record for one issued certificate.
type CertificateRecord struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	EntityKind string    `json:"entity_kind"`
	Serial     string    `json:"serial"`
	PEM        string    `json:"pem"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RevocationRecord is the persistent form of a CRL entry.
type RevocationRecord struct {
	Serial    string    `json:"serial"`
	Issuer    string    `json:"issuer"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
