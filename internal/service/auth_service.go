package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"admin-auth-service/internal/audit"
	"admin-auth-service/internal/config"
	"admin-auth-service/internal/credentials"
	"admin-auth-service/internal/encryption"
	"admin-auth-service/internal/fingerprint"
	"admin-auth-service/internal/lockout"
	"admin-auth-service/internal/models"
	"admin-auth-service/internal/repository"
	"admin-auth-service/internal/sanitize"
	"admin-auth-service/internal/session"
	"admin-auth-service/internal/twofactor"
	"admin-auth-service/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrTwoFactorRequired  = errors.New("two-factor verification required")
	ErrTwoFactorEnabled   = errors.New("two-factor already enabled")
	ErrTwoFactorNotSetup  = errors.New("two-factor not set up")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrAlreadyVerified    = errors.New("session already two-factor verified")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrUserNotFound       = errors.New("user no longer exists")
	ErrPermissionDenied   = errors.New("permission denied")
)

// WeakPasswordError carries the individual policy violations so the handler
// can return them all at once.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet policy"
}

// AccountLockedError carries the unlock time for the 423 response.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return ErrAccountLocked.Error()
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// LoginResult is returned on a successful password check. When the account
// has two-factor enabled the session starts unverified and the caller must
// complete verification before the session grants access.
type LoginResult struct {
	User              *models.AdminUser
	Session           *models.Session
	RequiresTwoFactor bool
}

// TwoFactorSetup carries the pending secret back to the client exactly once.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// AuthService implements the admin authentication flows: login with lockout,
// two-factor enrollment and verification, logout, and the password reset
// path. Every security-relevant transition lands in the audit trail.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.ResetTokenRepository
	sessions   session.Store
	sessionMgr *session.Manager
	hasher     *credentials.Hasher
	totp       *twofactor.Engine
	lockout    *lockout.Policy
	enc        *encryption.Manager
	audit      *audit.Recorder
	bcryptCost int
	resetTTL   time.Duration
}

func NewAuthService(
	cfg *config.Config,
	users repository.UserRepository,
	resets repository.ResetTokenRepository,
	sessions session.Store,
	sessionMgr *session.Manager,
	enc *encryption.Manager,
	auditRec *audit.Recorder,
) *AuthService {
	return &AuthService{
		users:      users,
		resets:     resets,
		sessions:   sessions,
		sessionMgr: sessionMgr,
		hasher:     credentials.NewHasher(cfg.Security.BcryptCost),
		totp:       twofactor.NewEngine(cfg.Security.TOTPIssuer),
		lockout:    lockout.NewPolicy(cfg.Security.MaxLoginAttempts, cfg.Security.LockoutDuration),
		enc:        enc,
		audit:      auditRec,
		bcryptCost: cfg.Security.BcryptCost,
		resetTTL:   cfg.Security.ResetTokenTTL,
	}
}

// Login checks credentials and issues a session. Lookups against unknown
// emails fail with the same error as wrong passwords so the endpoint cannot
// be used to enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string, rc fingerprint.RequestContext) (*LoginResult, error) {
	email = sanitize.Email(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit.Record(ctx, models.AuditFailedLogin, "",
				map[string]interface{}{"email": email, "reason": "unknown_email"},
				rc.IP, rc.UserAgent)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup failed: %w", err)
	}

	now := time.Now().UTC()

	if s.lockout.IsLocked(user.LockedUntil, now) {
		s.audit.Record(ctx, models.AuditFailedLogin, user.ID,
			map[string]interface{}{"reason": "account_locked"},
			rc.IP, rc.UserAgent)
		return nil, &AccountLockedError{Until: *user.LockedUntil}
	}

	if !s.hasher.VerifyPassword(password, user.PasswordHash) {
		return nil, s.recordFailedAttempt(ctx, user, rc)
	}

	if err := s.users.ClearFailedLogins(ctx, user.ID, now); err != nil {
		// the login itself succeeded; a stale counter self-heals on the
		// next success
		util.Warn("failed to clear login attempts",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	if user.LockedUntil != nil {
		s.audit.Record(ctx, models.AuditAccountUnlocked, user.ID, nil, rc.IP, rc.UserAgent)
	}

	sess, err := s.sessionMgr.NewSession(user.ID, !user.TwoFactorEnabled, rc.IP, rc.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.audit.Record(ctx, models.AuditLogin, user.ID,
		map[string]interface{}{"two_factor_pending": user.TwoFactorEnabled},
		rc.IP, rc.UserAgent)

	return &LoginResult{
		User:              user,
		Session:           sess,
		RequiresTwoFactor: user.TwoFactorEnabled,
	}, nil
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, user *models.AdminUser, rc fingerprint.RequestContext) error {
	now := time.Now().UTC()
	attempts := user.FailedLoginAttempts + 1

	var lockedUntil *time.Time
	if s.lockout.ShouldLock(attempts) {
		expiry := s.lockout.LockExpiry(now)
		lockedUntil = &expiry
	}

	if err := s.users.RecordFailedLogin(ctx, user.ID, attempts, lockedUntil); err != nil {
		util.Error("failed to persist login attempt counter",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	s.audit.Record(ctx, models.AuditFailedLogin, user.ID,
		map[string]interface{}{"reason": "wrong_password", "attempts": attempts},
		rc.IP, rc.UserAgent)

	if lockedUntil != nil {
		s.audit.Record(ctx, models.AuditAccountLocked, user.ID,
			map[string]interface{}{"locked_until": lockedUntil.Format(time.RFC3339)},
			rc.IP, rc.UserAgent)
		return &AccountLockedError{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

// Logout deletes the session. It never fails from the caller's perspective:
// an already-gone session is a successful logout.
func (s *AuthService) Logout(ctx context.Context, token string, rc fingerprint.RequestContext) {
	if token == "" {
		return
	}

	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		util.Warn("failed to delete session on logout", zap.Error(err))
		return
	}

	s.audit.Record(ctx, models.AuditLogout, sess.UserID, nil, rc.IP, rc.UserAgent)
}

// Authenticate resolves a session token to its user. A session that still
// awaits two-factor verification yields ErrTwoFactorRequired.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, *models.AdminUser, error) {
	sess, user, err := s.pendingSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if user.TwoFactorEnabled && !sess.TwoFactorVerified {
		return nil, nil, ErrTwoFactorRequired
	}
	return sess, user, nil
}

// LookupSession resolves a token without the two-factor gate. The session
// status endpoint reports a partial session instead of rejecting it.
func (s *AuthService) LookupSession(ctx context.Context, token string) (*models.Session, *models.AdminUser, error) {
	return s.pendingSession(ctx, token)
}

// pendingSession is Authenticate without the two-factor gate; the 2FA verify
// endpoint needs exactly this.
func (s *AuthService) pendingSession(ctx context.Context, token string) (*models.Session, *models.AdminUser, error) {
	if token == "" {
		return nil, nil, ErrSessionNotFound
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("session lookup failed: %w", err)
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("session user lookup failed: %w", err)
	}
	return sess, user, nil
}

// SetupTwoFactor generates and stores a pending TOTP secret. The account
// stays on password-only login until EnableTwoFactor confirms possession of
// the authenticator.
func (s *AuthService) SetupTwoFactor(ctx context.Context, token string, rc fingerprint.RequestContext) (*TwoFactorSetup, error) {
	_, user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	sealed, err := s.enc.SealString(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to seal totp secret: %w", err)
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, false, sealed, nil); err != nil {
		return nil, fmt.Errorf("failed to store pending totp secret: %w", err)
	}

	s.audit.Record(ctx, models.Audit2FASetupStarted, user.ID, nil, rc.IP, rc.UserAgent)

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: s.totp.ProvisioningURI(user.Email, secret),
	}, nil
}

// EnableTwoFactor verifies a code against the pending secret and switches
// the account to two-factor login. The returned backup codes are shown to
// the admin exactly once; only bcrypt hashes are stored.
func (s *AuthService) EnableTwoFactor(ctx context.Context, token, code string, rc fingerprint.RequestContext) ([]string, error) {
	sess, user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}
	if user.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotSetup
	}

	secret, err := s.enc.OpenString(ctx, user.TwoFactorSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to open totp secret: %w", err)
	}

	if !s.totp.VerifyCode(code, secret) {
		s.audit.Record(ctx, models.Audit2FAFailed, user.ID,
			map[string]interface{}{"stage": "enable"}, rc.IP, rc.UserAgent)
		return nil, ErrInvalidCode
	}

	codes, err := twofactor.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	hashes, err := s.totp.HashBackupCodes(codes, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, true, user.TwoFactorSecret, hashes); err != nil {
		return nil, fmt.Errorf("failed to enable two-factor: %w", err)
	}

	// the enabling session has just proven possession of the authenticator
	if err := s.sessions.MarkTwoFactorVerified(ctx, sess.Token); err != nil {
		util.Warn("failed to mark session verified after enable", zap.Error(err))
	}

	s.audit.Record(ctx, models.Audit2FAEnabled, user.ID, nil, rc.IP, rc.UserAgent)

	return codes, nil
}

// VerifyTwoFactor completes a pending login with a TOTP code or a backup
// code. Backup codes are single use. Returns the now-verified session so the
// handler can refresh the cookie.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, token, code string, rc fingerprint.RequestContext) (*models.Session, error) {
	sess, user, err := s.pendingSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotSetup
	}
	if sess.TwoFactorVerified {
		return nil, ErrAlreadyVerified
	}

	if twofactor.LooksLikeTOTP(code) {
		secret, err := s.enc.OpenString(ctx, user.TwoFactorSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to open totp secret: %w", err)
		}
		if s.totp.VerifyCode(code, secret) {
			return s.completeTwoFactor(ctx, sess, user, false, rc)
		}
	} else if idx, ok := s.totp.VerifyBackupCode(code, user.BackupCodes); ok {
		remaining := append([]string{}, user.BackupCodes[:idx]...)
		remaining = append(remaining, user.BackupCodes[idx+1:]...)
		if err := s.users.UpdateBackupCodes(ctx, user.ID, remaining); err != nil {
			return nil, fmt.Errorf("failed to consume backup code: %w", err)
		}
		return s.completeTwoFactor(ctx, sess, user, true, rc)
	}

	s.audit.Record(ctx, models.Audit2FAFailed, user.ID,
		map[string]interface{}{"stage": "verify"}, rc.IP, rc.UserAgent)
	return nil, ErrInvalidCode
}

func (s *AuthService) completeTwoFactor(ctx context.Context, sess *models.Session, user *models.AdminUser, usedBackupCode bool, rc fingerprint.RequestContext) (*models.Session, error) {
	if err := s.sessions.MarkTwoFactorVerified(ctx, sess.Token); err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	sess.TwoFactorVerified = true

	if usedBackupCode {
		s.audit.Record(ctx, models.AuditBackupCodeUsed, user.ID,
			map[string]interface{}{"remaining": len(user.BackupCodes) - 1},
			rc.IP, rc.UserAgent)
	}
	s.audit.Record(ctx, models.Audit2FAVerified, user.ID,
		map[string]interface{}{"backup_code": usedBackupCode},
		rc.IP, rc.UserAgent)
	return sess, nil
}

// DisableTwoFactor turns off two-factor login. It requires a valid TOTP or
// backup code, dispatched the same way as VerifyTwoFactor, so a hijacked
// session alone cannot weaken the account.
func (s *AuthService) DisableTwoFactor(ctx context.Context, token, code string, rc fingerprint.RequestContext) error {
	_, user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotSetup
	}

	valid := false
	if twofactor.LooksLikeTOTP(code) {
		secret, err := s.enc.OpenString(ctx, user.TwoFactorSecret)
		if err != nil {
			return fmt.Errorf("failed to open totp secret: %w", err)
		}
		valid = s.totp.VerifyCode(code, secret)
	} else {
		_, valid = s.totp.VerifyBackupCode(code, user.BackupCodes)
	}
	if !valid {
		s.audit.Record(ctx, models.Audit2FAFailed, user.ID,
			map[string]interface{}{"stage": "disable"}, rc.IP, rc.UserAgent)
		return ErrInvalidCode
	}

	if err := s.users.UpdateTwoFactor(ctx, user.ID, false, "", nil); err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}

	s.audit.Record(ctx, models.Audit2FADisabled, user.ID, nil, rc.IP, rc.UserAgent)
	return nil
}

// ForgotPassword issues a reset token when the email matches an account.
// It reports nothing about whether the account exists; the token travels out
// of band (email) and is returned here only for the delivery layer.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, rc fingerprint.RequestContext) (string, error) {
	email = sanitize.Email(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("reset lookup failed: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now().UTC()
	rt := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, rt); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	s.audit.Record(ctx, models.AuditPasswordResetRequest, user.ID, nil, rc.IP, rc.UserAgent)

	return token, nil
}

// ResetPassword consumes a reset token, sets the new password, and revokes
// every live session for the account.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, rc fingerprint.RequestContext) error {
	if result := credentials.ValidatePassword(newPassword); !result.Valid {
		return &WeakPasswordError{Violations: result.Errors}
	}

	rt, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("reset token lookup failed: %w", err)
	}

	now := time.Now().UTC()
	if !rt.IsValid(now) {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// mark the token used before the password lands; a torn failure here
	// errs on the side of a dead token, never a replayable one
	if err := s.resets.MarkUsed(ctx, token, now); err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, rt.UserID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	// clear any lockout left from the attempts that prompted the reset
	if err := s.users.ClearFailedLogins(ctx, rt.UserID, now); err != nil {
		util.Warn("failed to clear lockout after reset",
			zap.String("user_id", rt.UserID), zap.Error(err))
	}

	revoked, err := s.sessions.DeleteAllForUser(ctx, rt.UserID)
	if err != nil {
		util.Error("failed to revoke sessions after password reset",
			zap.String("user_id", rt.UserID), zap.Error(err))
	} else if revoked > 0 {
		s.audit.Record(ctx, models.AuditSessionRevoked, rt.UserID,
			map[string]interface{}{"count": revoked, "reason": "password_reset"},
			rc.IP, rc.UserAgent)
	}

	s.audit.Record(ctx, models.AuditPasswordResetComplete, rt.UserID, nil, rc.IP, rc.UserAgent)
	s.audit.Record(ctx, models.AuditPasswordChange, rt.UserID, nil, rc.IP, rc.UserAgent)

	return nil
}

// SearchAudit serves the audit read endpoint for admins allowed to see it.
func (s *AuthService) SearchAudit(ctx context.Context, token string, q audit.Query) ([]models.AuditEntry, error) {
	_, user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !user.CanViewAudit() {
		return nil, ErrPermissionDenied
	}
	return s.audit.Search(ctx, q)
}
