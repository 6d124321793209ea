package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager("admin_session", 24*time.Hour, "strict")
}

func TestGenerateTokenEntropy(t *testing.T) {
	m := testManager()

	t1, err := m.GenerateToken()
	require.NoError(t, err)
	t2, err := m.GenerateToken()
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
	assert.GreaterOrEqual(t, len(t1), 40)
	// cookie-safe alphabet
	assert.NotContains(t, t1, "=")
	assert.NotContains(t, t1, "+")
	assert.NotContains(t, t1, "/")
}

func TestNewSessionDefaults(t *testing.T) {
	m := testManager()

	s, err := m.NewSession("user-1", false, "203.0.113.9", "Mozilla/5.0")
	require.NoError(t, err)

	assert.Equal(t, "user-1", s.UserID)
	assert.False(t, s.TwoFactorVerified)
	assert.NotEmpty(t, s.ID)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "203.0.113.9", s.IPAddress)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), s.ExpiresAt, time.Minute)
}

func TestSessionExpiry(t *testing.T) {
	m := testManager()
	s, err := m.NewSession("user-1", true, "", "")
	require.NoError(t, err)

	assert.False(t, s.IsExpired(time.Now().UTC()))
	assert.True(t, s.IsExpired(time.Now().UTC().Add(25*time.Hour)))

	// a session whose expiry has passed is invalid regardless of other fields
	s.ExpiresAt = time.Now().UTC().Add(-time.Second)
	s.TwoFactorVerified = true
	assert.True(t, s.IsExpired(time.Now().UTC()))
}

func TestSessionCookieAttributes(t *testing.T) {
	m := testManager()
	expires := time.Now().Add(24 * time.Hour)

	c := m.SessionCookie("tok123", expires)
	assert.Equal(t, "admin_session", c.Name)
	assert.Equal(t, "tok123", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.WithinDuration(t, expires, c.Expires, time.Second)
}

func TestLogoutCookieClearsState(t *testing.T) {
	m := testManager()

	c := m.LogoutCookie()
	assert.Equal(t, "admin_session", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.True(t, c.Expires.Before(time.Now()))
}

func TestTokenFromRequest(t *testing.T) {
	m := testManager()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, m.TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: "admin_session", Value: "tok456"})
	assert.Equal(t, "tok456", m.TokenFromRequest(r))
}

func TestParseCookieHeader(t *testing.T) {
	m := testManager()

	assert.Equal(t, "abc", m.ParseCookieHeader("admin_session=abc"))
	assert.Equal(t, "abc", m.ParseCookieHeader("other=1; admin_session=abc; x=2"))
	assert.Empty(t, m.ParseCookieHeader("other=1"))
	assert.Empty(t, m.ParseCookieHeader(""))
	assert.Empty(t, m.ParseCookieHeader("garbage"))
}

func TestLaxSameSiteFallback(t *testing.T) {
	m := NewManager("admin_session", time.Hour, "lax")
	c := m.SessionCookie("t", time.Now())
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}
