package bot

import (
	"context"
	"sync"
	"time"
)

// SessionStore persists conversation sessions keyed by actor. Get returns
// (nil, nil) when the actor has no session, which the engine treats as a
// lost conversation for anything but an entry command.
type SessionStore interface {
	Get(ctx context.Context, actorID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, actorID int64) error
}

// sessionTTL bounds how long an abandoned conversation survives. After it
// expires the next interaction goes through lost-conversation recovery.
const sessionTTL = 24 * time.Hour

// MemoryStore is the in-process SessionStore used in tests and single-node
// deployments without redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, actorID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[actorID]
	if !ok {
		return nil, nil
	}
	if time.Since(s.UpdatedAt) > sessionTTL {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ActorID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, actorID)
	return nil
}
