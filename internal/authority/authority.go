// Package authority implements the root certifying authority of the V2X
// trust plane: certificate issuance, the revocation list, the issuance
// audit ledger, and the payload verification pipeline.
//
// There is no ambient singleton. An *Authority is constructed once and
// passed by reference to every collaborator.
package authority

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/config"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/metrics"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/store"
)

// EntityKind distinguishes credentialed entity classes.
type EntityKind string

const (
	KindVehicle        EntityKind = "vehicle"
	KindInfrastructure EntityKind = "infrastructure"
)

// RevocationEntry is one CRL entry, keyed by certificate serial.
type RevocationEntry struct {
	Serial    string
	Issuer    string
	Reason    string
	RevokedAt time.Time
}

// IssuedCertificate is one row of the issuance ledger. Records are
// append-only: they outlive rotation and revocation for audit.
type IssuedCertificate struct {
	ID        string
	EntityID  string
	Kind      EntityKind
	Serial    string
	PEM       []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Options configures a new Authority. Zero values pick safe defaults
// except Validity, which must be positive.
type Options struct {
	Name         string        // issuer common name, e.g. "V2X-Root-CA"
	Organization string        // subject organization, e.g. "V2X-CP"
	Validity     time.Duration // certificate validity window
	Hash         crypto.Hash   // signature hash, default SHA-256

	Store   store.Store      // audit persistence, default in-memory
	Logger  *zap.Logger      // default no-op
	Metrics *metrics.Set     // optional counters
	Clock   func() time.Time // default time.Now
}

// Authority is the root trust anchor. Ledger and CRL writes are
// serialized; reads proceed concurrently under the read lock since
// verification vastly outnumbers issuance in steady state.
type Authority struct {
	rootKey *ecdsa.PrivateKey
	rootPub *ecdsa.PublicKey

	name     string
	org      string
	validity time.Duration
	hash     crypto.Hash
	sigAlg   x509.SignatureAlgorithm

	store   store.Store
	log     *zap.Logger
	metrics *metrics.Set
	clock   func() time.Time

	mu     sync.RWMutex
	ledger map[string][]*IssuedCertificate // entity id -> issued, in order
	crl    map[string]*RevocationEntry     // serial -> entry
}

// serialLimit bounds the 128-bit random certificate serial space.
var serialLimit = new(big.Int).Lsh(big.NewInt(1), 128)

// New builds an Authority around an already-loaded root key. Persisted
// revocations are replayed into the in-memory CRL so lookups stay O(1).
func New(rootKey *ecdsa.PrivateKey, opts Options) (*Authority, error) {
	if rootKey == nil {
		return nil, fmt.Errorf("authority: root key is required")
	}
	if opts.Validity <= 0 {
		return nil, fmt.Errorf("authority: certificate validity must be positive, got %s", opts.Validity)
	}
	if opts.Hash == 0 {
		opts.Hash = crypto.SHA256
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Name == "" {
		opts.Name = "V2X-Root-CA"
	}

	a := &Authority{
		rootKey:  rootKey,
		rootPub:  &rootKey.PublicKey,
		name:     opts.Name,
		org:      opts.Organization,
		validity: opts.Validity,
		hash:     opts.Hash,
		sigAlg:   config.SignatureAlgorithm(opts.Hash),
		store:    opts.Store,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		ledger:   make(map[string][]*IssuedCertificate),
		crl:      make(map[string]*RevocationEntry),
	}

	persisted, err := a.store.ListRevocations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("authority: load revocations: %w", err)
	}
	for _, rec := range persisted {
		a.crl[rec.Serial] = &RevocationEntry{
			Serial:    rec.Serial,
			Issuer:    rec.Issuer,
			Reason:    rec.Reason,
			RevokedAt: rec.RevokedAt,
		}
	}

	return a, nil
}

// Open loads the root key pair from disk per cfg and builds the Authority.
// A missing or unreadable key file, a wrong passphrase or a key pair
// mismatch is fatal: the authority cannot exist without its root secret.
func Open(cfg config.CA, st store.Store, log *zap.Logger, m *metrics.Set) (*Authority, error) {
	passphrase, err := cfg.Passphrase()
	if err != nil {
		return nil, err
	}
	rootKey, err := LoadPrivateKey(cfg.PrivateKeyPath, passphrase)
	if err != nil {
		return nil, err
	}
	rootPub, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	if !rootKey.PublicKey.Equal(rootPub) {
		return nil, fmt.Errorf("root key pair mismatch: %s does not match %s",
			cfg.PublicKeyPath, cfg.PrivateKeyPath)
	}

	hash, err := config.ParseHash(cfg.Hash)
	if err != nil {
		return nil, err
	}

	return New(rootKey, Options{
		Name:         cfg.Name,
		Organization: cfg.Organization,
		Validity:     cfg.Validity.Std(),
		Hash:         hash,
		Store:        st,
		Logger:       log,
		Metrics:      m,
	})
}

// RootPublicKey returns the key every certificate must chain to.
func (a *Authority) RootPublicKey() *ecdsa.PublicKey { return a.rootPub }

// Name returns the issuer common name.
func (a *Authority) Name() string { return a.name }

// Hash returns the configured signature hash. Credential holders sign
// message bytes with the same hash the authority signs certificates with.
func (a *Authority) Hash() crypto.Hash { return a.hash }

// IssueCertificate builds, signs and ledgers a certificate binding the
// subject public key to "{kind}-{entityID}". Safe to call concurrently
// for distinct entities.
func (a *Authority) IssueCertificate(entityID string, kind EntityKind, pub *ecdsa.PublicKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: serial: %w", err)
	}

	now := a.clock()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   fmt.Sprintf("%s-%s", kind, entityID),
			Organization: []string{a.org},
		},
		NotBefore:          now,
		NotAfter:           now.Add(a.validity),
		KeyUsage:           x509.KeyUsageDigitalSignature,
		SignatureAlgorithm: a.sigAlg,
	}
	// The issuer is named by a parent template only; the root has no
	// self-signed certificate of its own, just the key pair.
	parent := &x509.Certificate{
		Subject: pkix.Name{CommonName: a.name},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, a.rootKey)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	rec := &IssuedCertificate{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Kind:      kind,
		Serial:    serial.String(),
		PEM:       certPEM,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.validity),
	}

	a.mu.Lock()
	a.ledger[entityID] = append(a.ledger[entityID], rec)
	a.mu.Unlock()

	if err := a.store.AppendCertificate(context.Background(), &store.CertificateRecord{
		ID:         rec.ID,
		EntityID:   rec.EntityID,
		EntityKind: string(rec.Kind),
		Serial:     rec.Serial,
		PEM:        string(rec.PEM),
		IssuedAt:   rec.IssuedAt,
		ExpiresAt:  rec.ExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("issue certificate: ledger append: %w", err)
	}

	a.metrics.ObserveIssued()
	a.log.Debug("certificate issued",
		zap.String("entity", entityID),
		zap.String("kind", string(kind)),
		zap.String("serial", rec.Serial))

	return certPEM, nil
}

// Revoke inserts (or overwrites) the CRL entry for serial with the current
// timestamp. It never fails on unknown serials: revoking a certificate the
// authority has not seen yet is acceptable.
func (a *Authority) Revoke(serial, reason, issuer string) {
	entry := &RevocationEntry{
		Serial:    serial,
		Issuer:    issuer,
		Reason:    reason,
		RevokedAt: a.clock(),
	}

	a.mu.Lock()
	a.crl[serial] = entry
	a.mu.Unlock()

	// A keyed upsert cannot partially fail; a persistence error only
	// degrades audit, never enforcement, so it is logged rather than
	// returned.
	if err := a.store.SaveRevocation(context.Background(), &store.RevocationRecord{
		Serial:    entry.Serial,
		Issuer:    entry.Issuer,
		Reason:    entry.Reason,
		RevokedAt: entry.RevokedAt,
	}); err != nil {
		a.log.Error("revocation not persisted", zap.String("serial", serial), zap.Error(err))
	}

	a.metrics.ObserveRevocation()
	a.log.Info("certificate revoked",
		zap.String("serial", serial),
		zap.String("reason", reason),
		zap.String("issuer", issuer))
}

// Revocation looks up the CRL entry for serial. O(1).
func (a *Authority) Revocation(serial string) (*RevocationEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.crl[serial]
	return entry, ok
}

// IssuedTo returns the issuance ledger for one entity, in issue order.
func (a *Authority) IssuedTo(entityID string) []*IssuedCertificate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	recs := make([]*IssuedCertificate, len(a.ledger[entityID]))
	copy(recs, a.ledger[entityID])
	return recs
}

// Digest hashes data with h. Shared by certificate verification and by
// credential holders signing message bytes.
func Digest(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}
