package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": time.Now().Add(expiresIn).Unix(), "user_id": "u1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestExpired(t *testing.T) {
	t.Parallel()

	s := NewSession(ModeToken)
	assert.True(t, s.Expired(), "empty token should count as expired")

	s.SetToken(signedToken(t, time.Hour))
	assert.False(t, s.Expired())

	s.SetToken(signedToken(t, -time.Hour))
	assert.True(t, s.Expired())

	s.SetToken("not-a-jwt")
	assert.True(t, s.Expired())
}

func TestCookieModeNeverExpires(t *testing.T) {
	t.Parallel()

	s := NewSession(ModeCookie)
	assert.False(t, s.Expired())
}

func TestApply(t *testing.T) {
	t.Parallel()

	tokenSession := NewSession(ModeToken)
	tokenSession.SetToken("abc")

	req, err := http.NewRequest(http.MethodGet, "http://backend/api/posts/", nil)
	require.NoError(t, err)
	tokenSession.Apply(req)
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))

	cookieSession := NewSession(ModeCookie)
	cookieSession.SetToken("abc")
	req, err = http.NewRequest(http.MethodGet, "http://backend/api/posts/", nil)
	require.NoError(t, err)
	cookieSession.Apply(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestWebSocketToken(t *testing.T) {
	t.Parallel()

	tokenSession := NewSession(ModeToken)
	tokenSession.SetToken("abc")
	assert.Equal(t, "abc", tokenSession.WebSocketToken())

	cookieSession := NewSession(ModeCookie)
	cookieSession.SetToken("abc")
	assert.Empty(t, cookieSession.WebSocketToken())
}
