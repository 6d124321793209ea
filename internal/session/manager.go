package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"admin-auth-service/internal/models"

	"github.com/google/uuid"
)

const tokenBytes = 32

// Manager owns session token and cookie mechanics. Persistence lives behind
// the Store interface.
type Manager struct {
	cookieName string
	duration   time.Duration
	sameSite   http.SameSite
}

func NewManager(cookieName string, duration time.Duration, sameSite string) *Manager {
	ss := http.SameSiteStrictMode
	if strings.EqualFold(sameSite, "lax") {
		ss = http.SameSiteLaxMode
	}
	return &Manager{
		cookieName: cookieName,
		duration:   duration,
		sameSite:   ss,
	}
}

// GenerateToken returns a high-entropy, cookie-safe opaque token.
func (m *Manager) GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Expiry returns the absolute expiry for a session issued now.
func (m *Manager) Expiry(now time.Time) time.Time {
	return now.Add(m.duration)
}

// NewSession builds a session record for a user who just passed the password
// check. twoFactorVerified starts false when the account has 2FA enabled.
func (m *Manager) NewSession(userID string, twoFactorVerified bool, ip, userAgent string) (*models.Session, error) {
	token, err := m.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &models.Session{
		ID:                uuid.New().String(),
		UserID:            userID,
		Token:             token,
		TwoFactorVerified: twoFactorVerified,
		ExpiresAt:         m.Expiry(now),
		IPAddress:         ip,
		UserAgent:         userAgent,
		CreatedAt:         now,
	}, nil
}

// SessionCookie builds the Set-Cookie value carrying the session token.
func (m *Manager) SessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: m.sameSite,
	}
}

// LogoutCookie clears the session cookie unconditionally. Logout must always
// succeed in clearing client state, even when the server side failed.
func (m *Manager) LogoutCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: m.sameSite,
	}
}

// TokenFromRequest extracts the session token from the request's cookies.
// Missing or malformed cookies yield the empty string.
func (m *Manager) TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// ParseCookieHeader extracts the token from a raw Cookie header value, for
// callers that do not hold an *http.Request.
func (m *Manager) ParseCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && name == m.cookieName {
			return value
		}
	}
	return ""
}

// CookieName exposes the configured cookie name for handler wiring.
func (m *Manager) CookieName() string {
	return m.cookieName
}
