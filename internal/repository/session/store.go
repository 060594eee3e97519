// Package session implements the bounded in-memory conversation store.
//
// The store holds at most maxSessions sessions and evicts the oldest-created
// session (not least-recently-used) to admit a new one. Each session keeps only
// the tail of its conversation, truncated to maxMessages entries after every
// append. State is process-local and lost on restart.
package session

import (
	"sync"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/metrics"
)

// Store is a concurrency-safe bounded session store.
type Store struct {
	mu          sync.Mutex
	sessions    map[string][]domain.Message
	order       []string // session ids in creation order, oldest first
	maxSessions int
	maxMessages int
}

// New creates a session store holding up to maxSessions sessions with up to
// maxMessages history entries each.
func New(maxSessions, maxMessages int) *Store {
	return &Store{
		sessions:    make(map[string][]domain.Message, maxSessions),
		maxSessions: maxSessions,
		maxMessages: maxMessages,
	}
}

// History returns a copy of the session's conversation, oldest first. An
// unknown session id yields an empty history.
func (s *Store) History(sessionID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.sessions[sessionID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Append records one completed exchange. A new session id is admitted under
// the cap, evicting the oldest-created session if needed; eviction and
// insertion happen under one lock so the store never exceeds its cap.
func (s *Store) Append(sessionID, userMessage, assistantAnswer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		if len(s.order) >= s.maxSessions {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.sessions, oldest)
			metrics.SessionEvictionsTotal.Inc()
		}
		s.order = append(s.order, sessionID)
	}

	msgs := append(s.sessions[sessionID],
		domain.Message{Role: domain.RoleUser, Text: userMessage},
		domain.Message{Role: domain.RoleAssistant, Text: assistantAnswer},
	)
	if len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	s.sessions[sessionID] = msgs

	metrics.SessionsActive.Set(float64(len(s.order)))
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
