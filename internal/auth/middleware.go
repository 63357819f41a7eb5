package auth

import (
	"net/http"
	"strings"
)

// CookieName is the session cookie set by the login handler.
const CookieName = "strix_session"

// Middleware rejects requests without a live session.
type Middleware struct {
	sessions     *SessionManager
	excludePaths []string
}

// NewMiddleware creates a new auth middleware. Paths ending in "/" exclude
// everything below them.
func NewMiddleware(sessions *SessionManager, excludePaths []string) *Middleware {
	return &Middleware{
		sessions:     sessions,
		excludePaths: excludePaths,
	}
}

// Wrap wraps an http.Handler with authentication checking
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			unauthorized(w)
			return
		}
		session, ok := m.sessions.Get(cookie.Value)
		if !ok {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, SetSessionContext(r, session))
	})
}

func (m *Middleware) isExcluded(path string) bool {
	for _, excluded := range m.excludePaths {
		if path == excluded {
			return true
		}
		if strings.HasSuffix(excluded, "/") && strings.HasPrefix(path, excluded) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`))
}
