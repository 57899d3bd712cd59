package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anser-ai/anser/internal/provider"
)

type memorySession struct {
	meta  Session
	turns []provider.Turn
}

// MemoryStore keeps sessions in process memory. It backs single-process
// chat runs and tests; history is lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memorySession
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*memorySession)}
}

// Create starts a new session whose history begins with the system turn.
func (s *MemoryStore) Create(_ context.Context, title, systemPrompt string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := Session{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}
	s.sessions[sess.ID] = &memorySession{
		meta:  sess,
		turns: []provider.Turn{{Role: provider.RoleSystem, Text: systemPrompt}},
	}
	return sess, nil
}

// Get returns the session or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ms.meta, nil
}

// List returns all sessions, most recently updated first.
func (s *MemoryStore) List(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, ms := range s.sessions {
		sessions = append(sessions, ms.meta)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Delete removes a session and its turns.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Turns returns a copy of the session's history in append order.
func (s *MemoryStore) Turns(_ context.Context, id uuid.UUID) ([]provider.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	turns := make([]provider.Turn, len(ms.turns))
	copy(turns, ms.turns)
	return turns, nil
}

// Append adds turns to the end of the session's history.
func (s *MemoryStore) Append(_ context.Context, id uuid.UUID, turns []provider.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ms.turns = append(ms.turns, turns...)
	ms.meta.UpdatedAt = time.Now()
	return nil
}
