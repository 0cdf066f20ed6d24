package credstore

import (
	"context"
	"sync"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
)

// MemoryDB is an in-memory session.Scoped, for tests and throwaway runs.
type MemoryDB struct {
	mu     sync.Mutex
	scopes map[string]*MemoryStore
	logger core.Logger
}

var _ session.Scoped = (*MemoryDB)(nil)

func NewMemoryDB(logger core.Logger) *MemoryDB {
	return &MemoryDB{scopes: make(map[string]*MemoryStore), logger: logger}
}

func (m *MemoryDB) Scope(id string) session.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scopes[id]; ok {
		return s
	}
	s := NewMemoryStore(m.logger)
	m.scopes[id] = s
	return s
}

// MemoryStore holds the two credential fields in memory.
type MemoryStore struct {
	mu     sync.Mutex
	token  []byte
	user   []byte
	logger core.Logger
}

var _ session.Store = (*MemoryStore)(nil)

func NewMemoryStore(logger core.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

func (s *MemoryStore) Save(_ context.Context, cred session.Credential) error {
	token, user, err := encode(cred)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, user
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (session.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok, err := decode(s.token, s.user)
	if err != nil {
		s.logger.Warn("clearing corrupted credential", err)
		s.token, s.user = nil, nil
		return session.Credential{}, false, nil
	}
	return cred, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = nil, nil
	return nil
}

// SetRaw overwrites the stored fields as-is, bypassing encoding.
// A nil value removes the field.
func (s *MemoryStore) SetRaw(token, user []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, user
}
