package holder

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

// Infrastructure is the static credential holder for roadside units such
// as traffic lights. It is issued exactly one credential at registration
// and never rotates; the message count is informational only.
type Infrastructure struct {
	id  string
	ca  *authority.Authority
	cfg Config

	mu    sync.Mutex
	cred  credential
	count int
}

// NewInfrastructure registers an infrastructure unit with the authority
// and issues its single credential.
func NewInfrastructure(id string, ca *authority.Authority, cfg Config) (*Infrastructure, error) {
	// PoolSize and RotationPeriod do not apply to the static variant.
	cfg.PoolSize = 1
	cfg.RotationPeriod = 2
	if err := cfg.defaults(); err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(cfg.Curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("infrastructure %s: generate key: %w", id, err)
	}
	cert, err := ca.IssueCertificate(id, authority.KindInfrastructure, &key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("infrastructure %s: request certificate: %w", id, err)
	}

	cfg.Logger.Info("infrastructure registered", zap.String("infrastructure", id))

	return &Infrastructure{
		id:   id,
		ca:   ca,
		cfg:  cfg,
		cred: credential{key: key, cert: cert},
	}, nil
}

// ID returns the infrastructure unit's simulation identifier.
func (i *Infrastructure) ID() string { return i.id }

// MessageCount returns the number of messages signed so far.
func (i *Infrastructure) MessageCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count
}

// PrepareMessage stamps, canonicalizes and signs a copy of the caller's
// fields against the unit's single credential.
func (i *Infrastructure) PrepareMessage(fields protocol.Fields) (protocol.Payload, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.count++
	msg, err := protocol.Canonical(fields, i.cfg.Clock())
	if err != nil {
		return protocol.Payload{}, err
	}
	sig, err := signMessage(i.cred.key, i.ca.Hash(), msg)
	if err != nil {
		return protocol.Payload{}, fmt.Errorf("infrastructure %s: sign message: %w", i.id, err)
	}

	return protocol.Payload{
		Message:     msg,
		Signature:   sig,
		Certificate: string(i.cred.cert),
	}, nil
}
