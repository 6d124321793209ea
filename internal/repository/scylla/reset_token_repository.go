package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"admin-auth-service/internal/models"
	"admin-auth-service/internal/repository"
	"admin-auth-service/internal/util"
)

// ResetTokenRepository persists password reset tokens. Rows are written with
// a 24h TTL so consumed and expired tokens age out without a cleanup job;
// logical expiry (1h) is enforced by the service.
type ResetTokenRepository struct {
	client *ScyllaClient
}

func NewResetTokenRepository(client *ScyllaClient) *ResetTokenRepository {
	return &ResetTokenRepository{client: client}
}

var _ repository.ResetTokenRepository = (*ResetTokenRepository)(nil)

func (r *ResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()

	err := r.client.Prepared.CreateResetToken.
		Bind(token.Token, token.ID, token.UserID, derefTime(token.UsedAt),
			token.ExpiresAt, token.CreatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to create reset token",
			zap.String("user_id", token.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	rt := &models.PasswordResetToken{}

	var usedAt time.Time
	err := r.client.Prepared.GetResetToken.Bind(token).WithContext(ctx).Scan(
		&rt.Token, &rt.ID, &rt.UserID, &usedAt, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to get reset token", zap.Error(err))
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	rt.UsedAt = nilIfZero(usedAt)
	return rt, nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, token string, usedAt time.Time) error {
	err := r.client.Prepared.MarkResetUsed.
		Bind(usedAt, token).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to mark reset token used", zap.Error(err))
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	return nil
}
