package models

import (
	"time"
)

// AuditAction is the closed vocabulary of security-relevant events.
type AuditAction string

const (
	AuditLogin                 AuditAction = "login"
	AuditLogout                AuditAction = "logout"
	AuditFailedLogin           AuditAction = "failed_login"
	AuditPasswordChange        AuditAction = "password_change"
	AuditPasswordResetRequest  AuditAction = "password_reset_request"
	AuditPasswordResetComplete AuditAction = "password_reset_complete"
	Audit2FASetupStarted       AuditAction = "2fa_setup_started"
	Audit2FAEnabled            AuditAction = "2fa_enabled"
	Audit2FADisabled           AuditAction = "2fa_disabled"
	Audit2FAVerified           AuditAction = "2fa_verified"
	Audit2FAFailed             AuditAction = "2fa_failed"
	AuditBackupCodeUsed        AuditAction = "backup_code_used"
	AuditSessionRevoked        AuditAction = "session_revoked"
	AuditAccountLocked         AuditAction = "account_locked"
	AuditAccountUnlocked       AuditAction = "account_unlocked"
)

var auditActions = map[AuditAction]struct{}{
	AuditLogin: {}, AuditLogout: {}, AuditFailedLogin: {},
	AuditPasswordChange: {}, AuditPasswordResetRequest: {}, AuditPasswordResetComplete: {},
	Audit2FASetupStarted: {}, Audit2FAEnabled: {}, Audit2FADisabled: {},
	Audit2FAVerified: {}, Audit2FAFailed: {}, AuditBackupCodeUsed: {},
	AuditSessionRevoked: {}, AuditAccountLocked: {}, AuditAccountUnlocked: {},
}

// IsValid reports whether a is one of the defined audit actions. The
// vocabulary is closed; recorders reject anything else.
func (a AuditAction) IsValid() bool {
	_, ok := auditActions[a]
	return ok
}

// AuditEntry is append-only; the core never mutates or deletes entries.
// UserID is empty for pre-auth events (e.g. a failed login against an
// unknown email).
type AuditEntry struct {
	ID        string                 `json:"id"`
	Action    AuditAction            `json:"action"`
	UserID    string                 `json:"user_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ip_address"`
	UserAgent string                 `json:"user_agent"`
	CreatedAt time.Time              `json:"created_at"`
}
