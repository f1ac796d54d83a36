package auth

import (
	"net/http"
	"sync"
	"time"

	"social-client/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Mode selects how credentials reach the backend. The server supports both
// cookie sessions (the default) and a JWT passed explicitly; a session uses
// exactly one of them.
type Mode int

const (
	// ModeCookie relies on session cookies set by the login flow; requests
	// and WebSocket handshakes carry no explicit credential.
	ModeCookie Mode = iota
	// ModeToken sends the JWT as a bearer header and as a token query
	// parameter on WebSocket URLs.
	ModeToken
)

// Session holds the authenticated user's credentials and identity for the
// lifetime of the client.
type Session struct {
	mu    sync.RWMutex
	mode  Mode
	token string
	user  *models.User
}

func NewSession(mode Mode) *Session {
	return &Session{mode: mode}
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetUser(user *models.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// UserID returns the local user's id, or "" before the account is loaded.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Expired reports whether the held token is past its exp claim. The client
// has no signing key, so the claim is read without signature verification;
// the server remains the authority and an unparsable token counts as
// expired. Cookie sessions never expire client-side.
func (s *Session) Expired() bool {
	s.mu.RLock()
	mode, token := s.mode, s.token
	s.mu.RUnlock()

	if mode == ModeCookie {
		return false
	}
	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false
	}
	return expiry.Before(time.Now())
}

// Apply decorates a REST request with the session credential.
func (s *Session) Apply(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mode == ModeToken && s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

// WebSocketToken returns the token to append to WebSocket URLs, or "" when
// cookie credentials carry the handshake.
func (s *Session) WebSocketToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mode == ModeToken {
		return s.token
	}
	return ""
}
