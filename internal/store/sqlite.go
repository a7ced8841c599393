package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// migrations is an ordered list of SQL statements applied on startup.
// Each entry is idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS issued_certificates (
		id          TEXT PRIMARY KEY,
		entity_id   TEXT NOT NULL,
		entity_kind TEXT NOT NULL,
		serial      TEXT NOT NULL,
		pem         TEXT NOT NULL,
		issued_at   TEXT NOT NULL,
		expires_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issued_certificates_entity
		ON issued_certificates (entity_id)`,
	`CREATE TABLE IF NOT EXISTS revocations (
		serial     TEXT PRIMARY KEY,
		issuer     TEXT NOT NULL,
		reason     TEXT NOT NULL,
		revoked_at TEXT NOT NULL
	)`,
}

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time.

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- Issued certificates ---

func (s *SQLiteStore) AppendCertificate(ctx context.Context, rec *CertificateRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issued_certificates (id, entity_id, entity_kind, serial, pem, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntityID, rec.EntityKind, rec.Serial, rec.PEM,
		rec.IssuedAt.UTC().Format(time.RFC3339Nano), rec.ExpiresAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) ListCertificates(ctx context.Context, entityID string) ([]*CertificateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, entity_kind, serial, pem, issued_at, expires_at
		 FROM issued_certificates WHERE entity_id = ? ORDER BY issued_at`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var recs []*CertificateRecord
	for rows.Next() {
		var rec CertificateRecord
		var issued, expires string
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.EntityKind, &rec.Serial, &rec.PEM, &issued, &expires); err != nil {
			return nil, err
		}
		rec.IssuedAt, _ = time.Parse(time.RFC3339Nano, issued)
		rec.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// --- Revocations ---

func (s *SQLiteStore) SaveRevocation(ctx context.Context, rec *RevocationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revocations (serial, issuer, reason, revoked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(serial) DO UPDATE SET issuer = excluded.issuer,
			reason = excluded.reason, revoked_at = excluded.revoked_at`,
		rec.Serial, rec.Issuer, rec.Reason, rec.RevokedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) ListRevocations(ctx context.Context) ([]*RevocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT serial, issuer, reason, revoked_at FROM revocations ORDER BY revoked_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var recs []*RevocationRecord
	for rows.Next() {
		var rec RevocationRecord
		var revoked string
		if err := rows.Scan(&rec.Serial, &rec.Issuer, &rec.Reason, &revoked); err != nil {
			return nil, err
		}
		rec.RevokedAt, _ = time.Parse(time.RFC3339Nano, revoked)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
