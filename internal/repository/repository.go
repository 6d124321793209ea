// Package repository defines the persistence interfaces for admin accounts
// and password reset tokens. ScyllaDB backs them in production; in-memory
// implementations back tests.
package repository

import (
	"context"
	"errors"
	"time"

	"admin-auth-service/internal/models"
)

var ErrNotFound = errors.New("repository: not found")

// UserRepository stores admin accounts. Email lookups are case-insensitive:
// implementations index by the lowercased address.
type UserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	GetByID(ctx context.Context, userID string) (*models.AdminUser, error)

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret string, backupCodes []string) error
	UpdateBackupCodes(ctx context.Context, userID string, backupCodes []string) error

	// RecordFailedLogin persists the new attempt counter and, when the
	// lockout threshold was crossed, the lock expiry.
	RecordFailedLogin(ctx context.Context, userID string, attempts int, lockedUntil *time.Time) error

	// ClearFailedLogins resets the counter and lock after a successful
	// authentication and stamps the login time.
	ClearFailedLogins(ctx context.Context, userID string, lastLoginAt time.Time) error
}

// ResetTokenRepository stores single-use password reset tokens.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, token string, usedAt time.Time) error
}
