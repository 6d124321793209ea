package session

import (
	"context"
	"errors"

	"admin-auth-service/internal/models"
)

// ErrNotFound covers missing, expired, and deleted sessions alike; consumers
// must not be able to tell these apart.
var ErrNotFound = errors.New("session not found")

// Store persists sessions keyed by their opaque token. Implementations must
// treat expired sessions as absent on read.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	MarkTwoFactorVerified(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error

	// DeleteAllForUser revokes every session for a user, returning how many
	// were removed. Used on password reset.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}
