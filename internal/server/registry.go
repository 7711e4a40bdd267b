package server

import (
	"errors"
	"sync"

	"github.com/lox/cardroom/internal/game"
)

// ErrGameInProgress is returned by Create when the room already has a
// session still in play.
var ErrGameInProgress = errors.New("game already in progress")

// SessionRegistry holds at most one session per room. Create is the
// atomic create-or-replace gate: two concurrent starts for the same
// room can never both win.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*game.Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*game.Session)}
}

// Create installs a new session for the room, built by the given
// constructor while the registry lock is held. A session still in play
// blocks the create; a settled or closed one is closed and replaced,
// which also cancels its pending reset timer.
func (r *SessionRegistry) Create(roomID string, build func() (*game.Session, error)) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[roomID]; ok {
		if !existing.Replaceable() {
			return nil, ErrGameInProgress
		}
		existing.Close()
		delete(r.sessions, roomID)
	}

	session, err := build()
	if err != nil {
		return nil, err
	}
	r.sessions[roomID] = session
	return session, nil
}

// Get returns the room's session, if any.
func (r *SessionRegistry) Get(roomID string) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[roomID]
	return session, ok
}

// Destroy closes and removes the room's session.
func (r *SessionRegistry) Destroy(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[roomID]; ok {
		session.Close()
		delete(r.sessions, roomID)
	}
}

// Close closes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		session.Close()
		delete(r.sessions, id)
	}
}
