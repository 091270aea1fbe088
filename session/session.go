package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
)

// ErrSessionNotFound is returned when a worker has no session.
var ErrSessionNotFound = errors.New("session not found")

// WorkerID identifies one concurrently running test worker.
type WorkerID string

// Session is one live browser owned by one worker.
type Session struct {
	ID        uuid.UUID
	Worker    WorkerID
	Kind      browser.Kind
	Driver    browser.Driver
	Options   browser.Options
	CreatedAt time.Time
}

// Store is an in-memory map of worker sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[WorkerID]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[WorkerID]*Session),
	}
}

// Set stores the session under its worker.
func (s *Store) Set(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Worker] = session
}

// Get returns the session owned by worker.
func (s *Store) Get(worker WorkerID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[worker]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Take removes and returns the session owned by worker.
func (s *Store) Take(worker WorkerID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[worker]
	if exists {
		delete(s.sessions, worker)
	}
	return session, exists
}

// TakeAll empties the store and returns what it held.
func (s *Store) TakeAll() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for worker, session := range s.sessions {
		out = append(out, session)
		delete(s.sessions, worker)
	}
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
