// Package memory keeps bounded per-session conversation history.
package memory

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for NewSessionStore.
const (
	DefaultCapacity    = 6
	DefaultMaxSessions = 10000
)

type session struct {
	mu    sync.Mutex
	turns []string
}

// SessionStore implements ports.ConversationMemory.
// Sessions idle longer than the TTL, or beyond the session cap, are dropped
// least recently used first.
type SessionStore struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *session]
	capacity int
}

// NewSessionStore creates a store holding at most capacity turns per session.
// idleTTL <= 0 disables expiry.
func NewSessionStore(capacity, maxSessions int, idleTTL time.Duration) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		sessions: expirable.NewLRU[string, *session](maxSessions, nil, idleTTL),
		capacity: capacity,
	}
}

// Append adds turns to a session as one unit, evicting the oldest turns
// once the session is over capacity. It refreshes the session's idle timer.
func (s *SessionStore) Append(sessionID string, turns ...string) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		sess = &session{}
	}
	s.sessions.Add(sessionID, sess)
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turns...)
	if over := len(sess.turns) - s.capacity; over > 0 {
		sess.turns = append(sess.turns[:0:0], sess.turns[over:]...)
	}
}

// Recent returns at most the last n turns of a session, oldest first.
// Unknown sessions have no history.
func (s *SessionStore) Recent(sessionID string, n int) []string {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	sess, ok := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	turns := sess.turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]string(nil), turns...)
}

// Reset forgets a session.
func (s *SessionStore) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Remove(sessionID)
}

// Sessions reports how many sessions are live.
func (s *SessionStore) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}

// Capacity is the per-session turn limit.
func (s *SessionStore) Capacity() int { return s.capacity }
