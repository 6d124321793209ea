package scylla

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"admin-auth-service/internal/models"
	"admin-auth-service/internal/repository"
	"admin-auth-service/internal/util"
)

// AdminUserRepository persists admin accounts across the admin_users table
// and the email_to_admin lookup table.
type AdminUserRepository struct {
	client *ScyllaClient
}

func NewAdminUserRepository(client *ScyllaClient) *AdminUserRepository {
	return &AdminUserRepository{client: client}
}

var _ repository.UserRepository = (*AdminUserRepository)(nil)

func (r *AdminUserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	// both tables in one logged batch so the lookup row cannot dangle
	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(r.client.Prepared.CreateUser.Statement(),
		user.ID, user.Email, string(user.Role), user.PasswordHash,
		user.TwoFactorEnabled, user.TwoFactorSecret, user.BackupCodes,
		user.FailedLoginAttempts, derefTime(user.LockedUntil),
		derefTime(user.LastLoginAt), user.CreatedAt, user.UpdatedAt)

	batch.Query(r.client.Prepared.CreateEmailToUser.Statement(),
		user.Email, user.ID, user.CreatedAt)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create admin user",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	util.Info("Admin user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return nil
}

func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var userID string
	err := r.client.Prepared.GetUserIDByEmail.Bind(email).WithContext(ctx).Scan(&userID)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to look up admin by email", zap.Error(err))
		return nil, fmt.Errorf("failed to look up admin by email: %w", err)
	}

	return r.GetByID(ctx, userID)
}

func (r *AdminUserRepository) GetByID(ctx context.Context, userID string) (*models.AdminUser, error) {
	user := &models.AdminUser{}

	var role string
	var lockedUntil, lastLoginAt time.Time

	err := r.client.Prepared.GetUserByID.Bind(userID).WithContext(ctx).Scan(
		&user.ID, &user.Email, &role, &user.PasswordHash,
		&user.TwoFactorEnabled, &user.TwoFactorSecret, &user.BackupCodes,
		&user.FailedLoginAttempts, &lockedUntil, &lastLoginAt,
		&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to get admin user",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	user.Role = models.AdminRole(role)
	user.LockedUntil = nilIfZero(lockedUntil)
	user.LastLoginAt = nilIfZero(lastLoginAt)

	return user, nil
}

func (r *AdminUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	err := r.client.Prepared.UpdatePassword.
		Bind(passwordHash, time.Now().UTC(), userID).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to update password hash",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *AdminUserRepository) UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret string, backupCodes []string) error {
	err := r.client.Prepared.UpdateTwoFactor.
		Bind(enabled, secret, backupCodes, time.Now().UTC(), userID).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to update two-factor state",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update two-factor state: %w", err)
	}
	return nil
}

func (r *AdminUserRepository) UpdateBackupCodes(ctx context.Context, userID string, backupCodes []string) error {
	err := r.client.Prepared.UpdateBackupCodes.
		Bind(backupCodes, time.Now().UTC(), userID).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to update backup codes",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update backup codes: %w", err)
	}
	return nil
}

func (r *AdminUserRepository) RecordFailedLogin(ctx context.Context, userID string, attempts int, lockedUntil *time.Time) error {
	err := r.client.Prepared.RecordFailedLogin.
		Bind(attempts, derefTime(lockedUntil), time.Now().UTC(), userID).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to record failed login",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

func (r *AdminUserRepository) ClearFailedLogins(ctx context.Context, userID string, lastLoginAt time.Time) error {
	err := r.client.Prepared.ClearFailedLogins.
		Bind(lastLoginAt, time.Now().UTC(), userID).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to clear failed logins",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to clear failed logins: %w", err)
	}
	return nil
}

// gocql stores nil pointers as null timestamps and reads them back as the
// zero time.
func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
