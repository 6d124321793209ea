package models

import (
	"time"
)

// PasswordResetToken is single-use and time-limited. Once consumed it stays
// invalid for its remaining lifetime.
type PasswordResetToken struct {
	ID        string     `db:"token_id"`
	UserID    string     `db:"user_id"`
	Token     string     `db:"token"`
	UsedAt    *time.Time `db:"used_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
