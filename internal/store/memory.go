package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Backend double: tests build ingest scenarios
// against it instead of standing up a real database.
type MemoryStore struct {
	mu sync.Mutex

	issuersByS1C map[string]*Issuer
	issuersByID  map[int64]*Issuer
	nextIssuerID int64

	certs     map[int64]*Cert // by ID
	certIndex map[certKey]int64
	nextID    int64
}

type certKey struct {
	iid int64
	sn  string
}

// NewMemoryStore returns an empty MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issuersByS1C: make(map[string]*Issuer),
		issuersByID:  make(map[int64]*Issuer),
		certs:        make(map[int64]*Cert),
		certIndex:    make(map[certKey]int64),
		nextIssuerID: 1,
		nextID:       1,
	}
}

var _ Backend = (*MemoryStore)(nil)

func (m *MemoryStore) FetchIssuerByS1C(_ context.Context, s1c string) (*Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issuer, ok := m.issuersByS1C[s1c]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *issuer
	return &clone, nil
}

func (m *MemoryStore) UpsertIssuer(_ context.Context, issuer *Issuer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.issuersByS1C[issuer.S1C]; ok {
		updated := *issuer
		updated.ID = existing.ID
		m.issuersByS1C[issuer.S1C] = &updated
		m.issuersByID[existing.ID] = &updated
		return existing.ID, nil
	}

	id := m.nextIssuerID
	m.nextIssuerID++
	stored := *issuer
	stored.ID = id
	m.issuersByS1C[issuer.S1C] = &stored
	m.issuersByID[id] = &stored
	return id, nil
}

func (m *MemoryStore) FindCertID(_ context.Context, iid int64, sn string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.certIndex[certKey{iid, sn}]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (m *MemoryStore) InsertCertFull(_ context.Context, c *Cert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	clone := *c
	clone.ID = id
	m.certs[id] = &clone
	m.certIndex[certKey{c.IID, c.SN}] = id
	return id, nil
}

func (m *MemoryStore) UpdateCertFull(_ context.Context, c *Cert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.certs[c.ID]
	if !ok {
		return ErrNotFound
	}
	existing.LUpdate = c.LUpdate
	existing.NBefore = c.NBefore
	existing.NAfter = c.NAfter
	existing.Hash = c.Hash
	return nil
}

func (m *MemoryStore) InsertCertRevokedOnly(_ context.Context, c *Cert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	clone := *c
	clone.ID = id
	clone.NBefore = SentinelNotBefore
	clone.NAfter = SentinelNotAfter
	m.certs[id] = &clone
	m.certIndex[certKey{c.IID, c.SN}] = id
	return id, nil
}

func (m *MemoryStore) UpdateCertRevocation(_ context.Context, c *Cert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.certs[c.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Rev = c.Rev
	existing.RR = c.RR
	existing.RT = c.RT
	existing.RIT = c.RIT
	existing.LUpdate = c.LUpdate
	return nil
}

func (m *MemoryStore) DeleteCert(_ context.Context, iid int64, sn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := certKey{iid, sn}
	id, ok := m.certIndex[key]
	if !ok {
		return ErrNotFound
	}
	delete(m.certIndex, key)
	delete(m.certs, id)
	return nil
}

func (m *MemoryStore) SweepStale(_ context.Context, iid int64, importStart int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, id := range m.certIndex {
		if key.iid != iid {
			continue
		}
		cert, ok := m.certs[id]
		if !ok {
			continue
		}
		if cert.LUpdate < importStart {
			delete(m.certIndex, key)
			delete(m.certs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

// Snapshot returns a defensive copy of every Cert row for iid, for test
// assertions against the post-import state of the store.
func (m *MemoryStore) Snapshot(iid int64) []Cert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Cert
	for key, id := range m.certIndex {
		if key.iid != iid {
			continue
		}
		if cert, ok := m.certs[id]; ok {
			out = append(out, *cert)
		}
	}
	return out
}
