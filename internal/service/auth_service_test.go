package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth-service/internal/audit"
	"admin-auth-service/internal/config"
	"admin-auth-service/internal/credentials"
	"admin-auth-service/internal/encryption"
	"admin-auth-service/internal/fingerprint"
	"admin-auth-service/internal/models"
	"admin-auth-service/internal/repository/memory"
	"admin-auth-service/internal/session"
)

// low cost keeps the suite fast; production uses cost 12
const testBcryptCost = 4

type fixture struct {
	svc      *AuthService
	users    *memory.UserStore
	sessions *memory.SessionStore
	resets   *memory.ResetTokenStore
	sink     *audit.MemorySink
	rc       fingerprint.RequestContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Security.BcryptCost = testBcryptCost
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.LockoutDuration = 15 * time.Minute
	cfg.Security.SessionDuration = 24 * time.Hour
	cfg.Security.ResetTokenTTL = time.Hour
	cfg.Security.TOTPIssuer = "TradeIn Admin"
	cfg.KMS.Enabled = false

	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	resets := memory.NewResetTokenStore()
	sink := audit.NewMemorySink(0)

	svc := NewAuthService(
		cfg,
		users,
		resets,
		sessions,
		session.NewManager("admin_session", cfg.Security.SessionDuration, "strict"),
		encryption.NewManager(cfg, nil),
		audit.NewRecorder(sink),
	)

	return &fixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		resets:   resets,
		sink:     sink,
		rc:       fingerprint.RequestContext{IP: "1.2.3.4", UserAgent: "test-agent"},
	}
}

func (f *fixture) createUser(t *testing.T, email, password string, role models.AdminRole) *models.AdminUser {
	t.Helper()

	hash, err := credentials.NewHasher(testBcryptCost).HashPassword(password)
	require.NoError(t, err)

	user := &models.AdminUser{Email: email, Role: role, PasswordHash: hash}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) auditActions(t *testing.T) []models.AuditAction {
	t.Helper()
	entries, err := f.sink.Query(context.Background(), audit.Query{Limit: 1000})
	require.NoError(t, err)
	actions := make([]models.AuditAction, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	assert.False(t, res.RequiresTwoFactor)
	assert.True(t, res.Session.TwoFactorVerified)
	assert.NotEmpty(t, res.Session.Token)

	_, user, err := f.svc.Authenticate(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.NotNil(t, user.LastLoginAt)

	assert.Contains(t, f.auditActions(t), models.AuditLogin)
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "Admin@Example.com", "Sup3rSecret!pass", models.RoleAdmin)

	_, err := f.svc.Login(context.Background(), "ADMIN@EXAMPLE.COM", "Sup3rSecret!pass", f.rc)
	assert.NoError(t, err)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever1234!", f.rc)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, f.auditActions(t), models.AuditFailedLogin)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	_, err := f.svc.Login(context.Background(), "admin@example.com", "wrong-password1!", f.rc)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, "admin@example.com", "wrong-password1!", f.rc)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// fifth failure crosses the threshold
	_, err := f.svc.Login(ctx, "admin@example.com", "wrong-password1!", f.rc)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// the right password is refused while locked
	_, err = f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	assert.ErrorIs(t, err, ErrAccountLocked)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockedUntil)
	assert.Contains(t, f.auditActions(t), models.AuditAccountLocked)
}

func TestLockExpiryAllowsLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.users.RecordFailedLogin(ctx, user.ID, 5, &past))

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	assert.NotNil(t, res.Session)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
	assert.Contains(t, f.auditActions(t), models.AuditAccountUnlocked)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	f.svc.Logout(ctx, res.Session.Token, f.rc)

	_, _, err = f.svc.Authenticate(ctx, res.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// logging out a dead session is still fine
	f.svc.Logout(ctx, res.Session.Token, f.rc)
	f.svc.Logout(ctx, "", f.rc)
}

func TestTwoFactorFullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	setup, err := f.svc.SetupTwoFactor(ctx, res.Session.Token, f.rc)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	codes, err := f.svc.EnableTwoFactor(ctx, res.Session.Token, code, f.rc)
	require.NoError(t, err)
	assert.Len(t, codes, 10)

	// the enabling session stays usable
	_, _, err = f.svc.Authenticate(ctx, res.Session.Token)
	require.NoError(t, err)

	// a fresh login now requires verification
	res2, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	assert.True(t, res2.RequiresTwoFactor)

	_, _, err = f.svc.Authenticate(ctx, res2.Session.Token)
	assert.ErrorIs(t, err, ErrTwoFactorRequired)

	code2, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	verified, err := f.svc.VerifyTwoFactor(ctx, res2.Session.Token, code2, f.rc)
	require.NoError(t, err)
	assert.True(t, verified.TwoFactorVerified)

	_, _, err = f.svc.Authenticate(ctx, res2.Session.Token)
	assert.NoError(t, err)
}

func TestTwoFactorBackupCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	setup, err := f.svc.SetupTwoFactor(ctx, res.Session.Token, f.rc)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	codes, err := f.svc.EnableTwoFactor(ctx, res.Session.Token, code, f.rc)
	require.NoError(t, err)

	res2, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	_, err = f.svc.VerifyTwoFactor(ctx, res2.Session.Token, codes[0], f.rc)
	require.NoError(t, err)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.BackupCodes, 9, "used code is consumed")

	// the same code cannot be replayed
	res3, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	_, err = f.svc.VerifyTwoFactor(ctx, res3.Session.Token, codes[0], f.rc)
	assert.ErrorIs(t, err, ErrInvalidCode)

	assert.Contains(t, f.auditActions(t), models.AuditBackupCodeUsed)
}

func TestTwoFactorWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	_, err = f.svc.SetupTwoFactor(ctx, res.Session.Token, f.rc)
	require.NoError(t, err)

	_, err = f.svc.EnableTwoFactor(ctx, res.Session.Token, "000000", f.rc)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Contains(t, f.auditActions(t), models.Audit2FAFailed)
}

func TestDisableTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	setup, err := f.svc.SetupTwoFactor(ctx, res.Session.Token, f.rc)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	_, err = f.svc.EnableTwoFactor(ctx, res.Session.Token, code, f.rc)
	require.NoError(t, err)

	// wrong code keeps 2FA on
	err = f.svc.DisableTwoFactor(ctx, res.Session.Token, "000000", f.rc)
	assert.ErrorIs(t, err, ErrInvalidCode)

	code2, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.DisableTwoFactor(ctx, res.Session.Token, code2, f.rc))

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.Empty(t, stored.BackupCodes)
}

func TestDisableTwoFactorWithBackupCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	res, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	setup, err := f.svc.SetupTwoFactor(ctx, res.Session.Token, f.rc)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	codes, err := f.svc.EnableTwoFactor(ctx, res.Session.Token, code, f.rc)
	require.NoError(t, err)

	require.NoError(t, f.svc.DisableTwoFactor(ctx, res.Session.Token, codes[3], f.rc))

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
}

func TestForgotPasswordUnknownEmailSilent(t *testing.T) {
	f := newFixture(t)

	token, err := f.svc.ForgotPassword(context.Background(), "nobody@example.com", f.rc)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	// two live sessions that must both die on reset
	res1, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	res2, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	token, err := f.svc.ForgotPassword(ctx, "admin@example.com", f.rc)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "N3w!Password#here", f.rc))

	_, _, err = f.svc.Authenticate(ctx, res1.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = f.svc.Authenticate(ctx, res2.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "admin@example.com", "N3w!Password#here", f.rc)
	assert.NoError(t, err)

	actions := f.auditActions(t)
	assert.Contains(t, actions, models.AuditPasswordResetRequest)
	assert.Contains(t, actions, models.AuditPasswordResetComplete)
	assert.Contains(t, actions, models.AuditSessionRevoked)
}

func TestResetTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	token, err := f.svc.ForgotPassword(ctx, "admin@example.com", f.rc)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "N3w!Password#here", f.rc))

	err = f.svc.ResetPassword(ctx, token, "An0ther!Password#", f.rc)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	rt := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, f.resets.Create(ctx, rt))

	err := f.svc.ResetPassword(ctx, "expired-token", "N3w!Password#here", f.rc)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPasswordUserVanished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resets.Create(ctx, &models.PasswordResetToken{
		UserID:    "ghost",
		Token:     "orphaned-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	err := f.svc.ResetPassword(ctx, "orphaned-token", "N3w!Password#here", f.rc)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPasswordPolicyViolations(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), "whatever", "short", f.rc)

	var weak *WeakPasswordError
	require.ErrorAs(t, err, &weak)
	assert.NotEmpty(t, weak.Violations)
}

func TestSearchAuditPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "viewer@example.com", "Sup3rSecret!pass", models.RoleViewer)
	f.createUser(t, "admin@example.com", "Sup3rSecret!pass", models.RoleAdmin)

	viewerRes, err := f.svc.Login(ctx, "viewer@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)
	adminRes, err := f.svc.Login(ctx, "admin@example.com", "Sup3rSecret!pass", f.rc)
	require.NoError(t, err)

	_, err = f.svc.SearchAudit(ctx, viewerRes.Session.Token, audit.Query{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	entries, err := f.svc.SearchAudit(ctx, adminRes.Session.Token, audit.Query{Action: models.AuditLogin})
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
