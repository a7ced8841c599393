package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with in-process maps. Used by tests and by
// simulator runs that do not configure a database path.
type MemoryStore struct {
	mu          sync.RWMutex
	issued      map[string][]*CertificateRecord // entity id -> records, append order
	revocations map[string]*RevocationRecord    // serial -> record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issued:      make(map[string][]*CertificateRecord),
		revocations: make(map[string]*RevocationRecord),
	}
}

func (s *MemoryStore) AppendCertificate(_ context.Context, rec *CertificateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.issued[rec.EntityID] = append(s.issued[rec.EntityID], &cp)
	return nil
}

func (s *MemoryStore) ListCertificates(_ context.Context, entityID string) ([]*CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*CertificateRecord, 0, len(s.issued[entityID]))
	for _, rec := range s.issued[entityID] {
		cp := *rec
		recs = append(recs, &cp)
	}
	return recs, nil
}

func (s *MemoryStore) SaveRevocation(_ context.Context, rec *RevocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.revocations[rec.Serial] = &cp
	return nil
}

func (s *MemoryStore) ListRevocations(_ context.Context) ([]*RevocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*RevocationRecord, 0, len(s.revocations))
	for _, rec := range s.revocations {
		cp := *rec
		recs = append(recs, &cp)
	}
	return recs, nil
}

func (s *MemoryStore) Close() error { return nil }
