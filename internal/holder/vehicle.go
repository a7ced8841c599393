// Package holder implements the credential holders of the trust plane:
// the pooled, pseudonym-rotating vehicle variant and the single-credential
// infrastructure variant. Each holder exclusively owns its private key
// material and rotation state; nothing else reads or mutates them.
package holder

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

// Config parameterises a credential holder.
type Config struct {
	PoolSize       int              // certificates per vehicle batch
	RotationPeriod int              // messages per credential, min 2
	Curve          elliptic.Curve   // default P-256
	Logger         *zap.Logger      // default no-op
	Clock          func() time.Time // default time.Now
}

func (c *Config) defaults() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("holder: pool size must be at least 1, got %d", c.PoolSize)
	}
	// The rotation rule takes count modulo RotationPeriod-1, so anything
	// below 2 has no meaningful modulus.
	if c.RotationPeriod < 2 {
		return fmt.Errorf("holder: rotation period must be at least 2, got %d", c.RotationPeriod)
	}
	if c.Curve == nil {
		c.Curve = elliptic.P256()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// credential pairs a private key with its certificate. The two are bound
// by the matching public key inside the certificate.
type credential struct {
	key  *ecdsa.PrivateKey
	cert []byte // PEM
}

// Vehicle is the pooled, rotating credential holder for one vehicle.
// All state transitions happen under mu, so rotation never occurs
// mid-signing and concurrent PrepareMessage calls stay atomic.
type Vehicle struct {
	id  string
	ca  *authority.Authority
	cfg Config

	mu    sync.Mutex
	pool  []credential
	index int // active credential, 0..PoolSize-1
	count int // messages signed since last rotation
}

// NewVehicle registers a vehicle with the authority and issues its first
// credential batch.
func NewVehicle(id string, ca *authority.Authority, cfg Config) (*Vehicle, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	v := &Vehicle{id: id, ca: ca, cfg: cfg}
	if err := v.generateBatch(); err != nil {
		return nil, err
	}
	cfg.Logger.Info("vehicle registered",
		zap.String("vehicle", id),
		zap.Int("certificates", cfg.PoolSize))
	return v, nil
}

// ID returns the vehicle's simulation identifier.
func (v *Vehicle) ID() string { return v.id }

// MessageCount returns the number of messages signed with the currently
// active credential.
func (v *Vehicle) MessageCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.count
}

// ActiveCertificate returns the PEM of the credential currently in use.
func (v *Vehicle) ActiveCertificate() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	cert := make([]byte, len(v.pool[v.index].cert))
	copy(cert, v.pool[v.index].cert)
	return cert
}

// generateBatch issues a full pool of fresh key pairs and certificates and
// resets the rotation state. Key generation and certificate requests fan
// out concurrently into fixed slots so the stored order stays stable.
// On any failure the previous pool is left untouched.
func (v *Vehicle) generateBatch() error {
	pool := make([]credential, v.cfg.PoolSize)

	var g errgroup.Group
	for i := range pool {
		i := i
		g.Go(func() error {
			key, err := ecdsa.GenerateKey(v.cfg.Curve, rand.Reader)
			if err != nil {
				return fmt.Errorf("vehicle %s: generate key: %w", v.id, err)
			}
			cert, err := v.ca.IssueCertificate(v.id, authority.KindVehicle, &key.PublicKey)
			if err != nil {
				return fmt.Errorf("vehicle %s: request certificate: %w", v.id, err)
			}
			pool[i] = credential{key: key, cert: cert}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	v.pool = pool
	v.index = 0
	v.count = 0
	return nil
}

// rotateIfDue advances the rotation state machine before a signing
// operation. The modular test deliberately uses RotationPeriod-1 with a
// count != 0 guard, so a credential signs RotationPeriod-1 messages before
// the switch; exhaustion of the last pool slot regenerates the whole
// batch regardless of message count.
func (v *Vehicle) rotateIfDue() error {
	if v.index == v.cfg.PoolSize-1 {
		v.cfg.Logger.Info("credential pool exhausted, regenerating batch",
			zap.String("vehicle", v.id))
		return v.generateBatch()
	}
	if v.count != 0 && v.count%(v.cfg.RotationPeriod-1) == 0 {
		v.index++
		v.count = 0
	}
	return nil
}

// PrepareMessage rotates if due, stamps and canonicalizes a copy of the
// caller's fields, signs the canonical bytes with the active private key
// and returns the outbound payload. The caller's map is never mutated.
func (v *Vehicle) PrepareMessage(fields protocol.Fields) (protocol.Payload, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.rotateIfDue(); err != nil {
		return protocol.Payload{}, err
	}
	if len(v.pool) == 0 || v.index >= len(v.pool) {
		// State machine bug, not an environmental condition.
		panic(fmt.Sprintf("vehicle %s: no active credential at index %d", v.id, v.index))
	}

	msg, err := protocol.Canonical(fields, v.cfg.Clock())
	if err != nil {
		return protocol.Payload{}, err
	}
	sig, err := signMessage(v.pool[v.index].key, v.ca.Hash(), msg)
	if err != nil {
		return protocol.Payload{}, fmt.Errorf("vehicle %s: sign message: %w", v.id, err)
	}
	v.count++

	return protocol.Payload{
		Message:     msg,
		Signature:   sig,
		Certificate: string(v.pool[v.index].cert),
	}, nil
}

// signMessage signs canonical message bytes and encodes the ASN.1 ECDSA
// signature as base64 text.
func signMessage(key *ecdsa.PrivateKey, hash crypto.Hash, msg []byte) (string, error) {
	sig, err := ecdsa.SignASN1(rand.Reader, key, authority.Digest(hash, msg))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
