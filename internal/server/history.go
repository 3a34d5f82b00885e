// Package server implements the local stand-in for the remote assistant
// service: the multipart voice endpoint, the websocket text-chat endpoint,
// and the health/cancel endpoints the demo clients expect.
package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for history lookups on unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

// Entry is one role-tagged line of a session's conversation log.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryStore keeps per-session conversation logs in memory, one log per
// server-assigned session id.
type HistoryStore struct {
	mu        sync.RWMutex
	createdAt map[string]time.Time
	entries   map[string][]Entry
}

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		createdAt: make(map[string]time.Time),
		entries:   make(map[string][]Entry),
	}
}

// Ensure returns the given session id, minting a fresh one when empty, and
// guarantees the session exists in the store.
func (s *HistoryStore) Ensure(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.createdAt[sessionID]; !ok {
		s.createdAt[sessionID] = time.Now().UTC()
		s.entries[sessionID] = make([]Entry, 0, 16)
	}
	return sessionID
}

// Append adds one line to the session's log.
func (s *HistoryStore) Append(sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.createdAt[sessionID]; !ok {
		return ErrSessionNotFound
	}
	s.entries[sessionID] = append(s.entries[sessionID], Entry{Role: role, Content: content})
	return nil
}

// History returns a copy of the session's log.
func (s *HistoryStore) History(sessionID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return copied, nil
}
