package models

import (
	"time"
)

// Session is looked up solely by its opaque token. A session created after a
// password check but before the 2FA check has TwoFactorVerified=false and
// grants no access beyond the 2FA verification endpoint itself.
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Token             string    `json:"token"`
	TwoFactorVerified bool      `json:"two_factor_verified"`
	ExpiresAt         time.Time `json:"expires_at"`
	IPAddress         string    `json:"ip_address"`
	UserAgent         string    `json:"user_agent"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsExpired reports whether the session has passed its expiry. Expired
// sessions are indistinguishable from deleted ones to callers.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
