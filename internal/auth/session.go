package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

// Session represents a user session
type Session struct {
	ID        string
	User      *User
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager handles in-memory session storage
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewSessionManager creates a new session manager with the given TTL in
// minutes. Call Stop to end its cleanup goroutine.
func NewSessionManager(ttlMinutes int) *SessionManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 480 // Default 8 hours
	}
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      time.Duration(ttlMinutes) * time.Minute,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go sm.cleanup(5 * time.Minute)
	return sm
}

// Create creates a new session for the user
func (sm *SessionManager) Create(user *User) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	sm.sessions[id] = &Session{
		ID:        id,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	return id, nil
}

// Get retrieves a live session and extends its expiry.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if !ok {
		return nil, false
	}
	now := sm.now()
	if now.After(session.ExpiresAt) {
		delete(sm.sessions, id)
		return nil, false
	}
	session.ExpiresAt = now.Add(sm.ttl)
	return session, true
}

// Delete removes a session
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

func (sm *SessionManager) Stop() {
	sm.once.Do(func() { close(sm.stop) })
}

// cleanup periodically removes expired sessions
func (sm *SessionManager) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sm.purge()
		case <-sm.stop:
			return
		}
	}
}

func (sm *SessionManager) purge() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type contextKey string

const sessionContextKey contextKey = "session"

// SetSessionContext adds the session to the request context
func SetSessionContext(r *http.Request, session *Session) *http.Request {
	ctx := context.WithValue(r.Context(), sessionContextKey, session)
	return r.WithContext(ctx)
}

// GetSessionContext retrieves the session from the request context
func GetSessionContext(r *http.Request) *Session {
	session, _ := r.Context().Value(sessionContextKey).(*Session)
	return session
}
