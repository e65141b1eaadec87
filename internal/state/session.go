// internal/state/session.go
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

// Session is one user's in-progress conversation.
type Session struct {
	UserID      types.UserID  `json:"user_id"`
	ChatID      int64         `json:"chat_id"`
	Step        Step          `json:"step"`
	Record      schema.Record `json:"record"`
	Username    string        `json:"username,omitempty"`
	DisplayName string        `json:"display_name,omitempty"`
	PhotoRef    string        `json:"photo_ref,omitempty"`
	PhotoPath   string        `json:"photo_path,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Record = s.Record.Clone()
	return &c
}

// SessionStore is an in-memory session map keyed by user id.
// Get and List hand out copies; mutations go through Save.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[types.UserID]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[types.UserID]*Session),
		now:      time.Now,
	}
}

// Create starts a fresh session for the user, replacing any existing one.
func (s *SessionStore) Create(userID types.UserID) *Session {
	now := s.now()
	sess := &Session{
		UserID:    userID,
		Step:      Idle(),
		Record:    schema.Record{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()

	return sess.clone()
}

// Get returns a copy of the user's session.
func (s *SessionStore) Get(userID types.UserID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Begin returns a copy of the user's session for a turn and marks it
// active, so a Sweep running before the turn's Save keeps it.
func (s *SessionStore) Begin(userID types.UserID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	sess.UpdatedAt = s.now()
	return sess.clone(), true
}

// Save stores the session, setting UpdatedAt to now.
func (s *SessionStore) Save(sess *Session) {
	c := sess.clone()
	c.UpdatedAt = s.now()
	if c.Record == nil {
		c.Record = schema.Record{}
	}

	s.mu.Lock()
	s.sessions[c.UserID] = c
	s.mu.Unlock()
}

// Delete removes the user's session. Deleting a missing session is a no-op.
func (s *SessionStore) Delete(userID types.UserID) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// List returns a snapshot of all sessions ordered by creation time.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions not updated within idleFor and returns their ids.
// Turns read their session with Begin, so a session is never swept while
// its turn is in progress.
func (s *SessionStore) Sweep(idleFor time.Duration) []types.UserID {
	cutoff := s.now().Add(-idleFor)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []types.UserID
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
