package models

import (
	"time"
)

type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
	RoleViewer     AdminRole = "viewer"
)

// AdminUser is the dashboard operator account. TwoFactorSecret is stored
// encrypted and is non-empty whenever TwoFactorEnabled is true; during 2FA
// setup it holds the pending secret with TwoFactorEnabled still false.
type AdminUser struct {
	ID                  string     `db:"admin_id"`
	Email               string     `db:"email"`
	Role                AdminRole  `db:"role"`
	PasswordHash        string     `db:"password_hash"`
	TwoFactorEnabled    bool       `db:"two_factor_enabled"`
	TwoFactorSecret     string     `db:"two_factor_secret"`
	BackupCodes         []string   `db:"backup_codes"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// CanViewAudit reports whether the role may read the audit log.
func (u *AdminUser) CanViewAudit() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
