package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/easymo/omni-agent-go/core"
)

// session holds one owner's in-process conversation state. turns
// counts completed exchanges and keeps growing after the message
// window is trimmed.
type session struct {
	id       string
	turns    int
	messages []core.Message
}

// sessionStore keeps bounded per-owner histories for the completion
// run mode. Assistant mode keeps history server-side instead.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	limit    int
}

func newSessionStore(limit int) *sessionStore {
	if limit <= 0 {
		limit = 20
	}
	return &sessionStore{sessions: make(map[string]*session), limit: limit}
}

// get returns the owner's session, creating one on first use.
func (s *sessionStore) get(ownerID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		sess = &session{id: uuid.New().String()}
		s.sessions[ownerID] = sess
	}
	return sess
}

// history snapshots the owner's messages.
func (s *sessionStore) history(ownerID string) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		return nil
	}
	out := make([]core.Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// appendTurn records a completed exchange, trimming to the limit. It
// returns the session id and the 1-based number of the turn just
// recorded.
func (s *sessionStore) appendTurn(ownerID, userMessage, reply string) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		sess = &session{id: uuid.New().String()}
		s.sessions[ownerID] = sess
	}
	sess.turns++
	sess.messages = append(sess.messages,
		core.Message{Role: core.RoleUser, Content: userMessage},
		core.Message{Role: core.RoleAssistant, Content: reply},
	)
	if len(sess.messages) > s.limit {
		sess.messages = sess.messages[len(sess.messages)-s.limit:]
	}
	return sess.id, sess.turns
}

// reset drops the owner's session.
func (s *sessionStore) reset(ownerID string) {
	s.mu.Lock()
	delete(s.sessions, ownerID)
	s.mu.Unlock()
}
