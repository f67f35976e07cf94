// internal/state/session.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/user/chatverse/internal/types"
)

var ErrNotFound = errors.New("not found")

// Session pairs a session's index entry with the data the UI keeps for it.
// Callers hold Lock while reading or changing Data.
type Session[T any] struct {
	mu    sync.Mutex
	index types.SessionIndex
	Data  T
}

func (s *Session[T]) Lock()   { s.mu.Lock() }
func (s *Session[T]) Unlock() { s.mu.Unlock() }

// ID returns the session's identifier.
func (s *Session[T]) ID() types.SessionID { return s.index.SessionID }

// SessionStore is an in-memory session store. Nothing outlives the process.
type SessionStore[T any] struct {
	mu      sync.RWMutex
	byKey   map[types.SessionKey]*Session[T]
	byID    map[types.SessionID]*Session[T]
	newData func() T
}

// NewSessionStore creates a store that seeds each new session's data with
// newData.
func NewSessionStore[T any](newData func() T) *SessionStore[T] {
	return &SessionStore[T]{
		byKey:   make(map[types.SessionKey]*Session[T]),
		byID:    make(map[types.SessionID]*Session[T]),
		newData: newData,
	}
}

// ResolveOrCreate returns the SessionID for the given key, creating a new session if needed.
func (s *SessionStore[T]) ResolveOrCreate(_ context.Context, key types.SessionKey) (types.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[key]; ok {
		return existing.index.SessionID, nil
	}

	now := time.Now()
	sess := &Session[T]{
		index: types.SessionIndex{
			SessionID:  types.NewSessionID(),
			SessionKey: key,
			Status:     "active",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	if s.newData != nil {
		sess.Data = s.newData()
	}
	s.byKey[key] = sess
	s.byID[sess.index.SessionID] = sess
	return sess.index.SessionID, nil
}

// Get returns a copy of the session's index entry.
func (s *SessionStore[T]) Get(_ context.Context, id types.SessionID) (*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	idx := sess.index
	return &idx, nil
}

// List returns every session, oldest first.
func (s *SessionStore[T]) List(_ context.Context) ([]*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.SessionIndex, 0, len(s.byID))
	for _, sess := range s.byID {
		idx := sess.index
		out = append(out, &idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete forgets a session.
func (s *SessionStore[T]) Delete(_ context.Context, id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(s.byID, id)
	delete(s.byKey, sess.index.SessionKey)
	return nil
}

// Session returns the live session so callers can reach its data.
func (s *SessionStore[T]) Session(id types.SessionID) (*Session[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, nil
}

// Touch records activity on a session, optionally naming the run that caused
// it.
func (s *SessionStore[T]) Touch(id types.SessionID, runID types.RunID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byID[id]; ok {
		sess.index.UpdatedAt = time.Now()
		if runID != "" {
			sess.index.LastRunID = runID
		}
	}
}
