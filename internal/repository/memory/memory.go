// Package memory provides in-process implementations of the persistence
// interfaces. They back unit tests and the no-infrastructure development
// mode; production uses the Scylla and Redis implementations.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"admin-auth-service/internal/models"
	"admin-auth-service/internal/repository"
	"admin-auth-service/internal/session"
)

// UserStore keeps admin accounts in a map keyed by ID with an email index.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.AdminUser
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*models.AdminUser),
		byEmail: make(map[string]string),
	}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(_ context.Context, user *models.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(_ context.Context, userID string) (*models.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *UserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.update(userID, func(u *models.AdminUser) {
		u.PasswordHash = passwordHash
	})
}

func (s *UserStore) UpdateTwoFactor(_ context.Context, userID string, enabled bool, secret string, backupCodes []string) error {
	return s.update(userID, func(u *models.AdminUser) {
		u.TwoFactorEnabled = enabled
		u.TwoFactorSecret = secret
		u.BackupCodes = backupCodes
	})
}

func (s *UserStore) UpdateBackupCodes(_ context.Context, userID string, backupCodes []string) error {
	return s.update(userID, func(u *models.AdminUser) {
		u.BackupCodes = backupCodes
	})
}

func (s *UserStore) RecordFailedLogin(_ context.Context, userID string, attempts int, lockedUntil *time.Time) error {
	return s.update(userID, func(u *models.AdminUser) {
		u.FailedLoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (s *UserStore) ClearFailedLogins(_ context.Context, userID string, lastLoginAt time.Time) error {
	return s.update(userID, func(u *models.AdminUser) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &lastLoginAt
	})
}

func (s *UserStore) update(userID string, fn func(*models.AdminUser)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(user)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// SessionStore keeps sessions in a map; expired sessions are treated as
// absent on read, matching the Redis store's TTL behavior.
type SessionStore struct {
	mu       sync.RWMutex
	byToken  map[string]*models.Session
	userToks map[string]map[string]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken:  make(map[string]*models.Session),
		userToks: make(map[string]map[string]struct{}),
	}
}

var _ session.Store = (*SessionStore)(nil)

func (s *SessionStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.byToken[sess.Token] = &cp
	if s.userToks[sess.UserID] == nil {
		s.userToks[sess.UserID] = make(map[string]struct{})
	}
	s.userToks[sess.UserID][sess.Token] = struct{}{}
	return nil
}

func (s *SessionStore) GetByToken(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	sess, ok := s.byToken[token]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrNotFound
	}
	if sess.IsExpired(time.Now().UTC()) {
		s.remove(token)
		return nil, session.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) MarkTwoFactorVerified(ctx context.Context, token string) error {
	if _, err := s.GetByToken(ctx, token); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byToken[token]; ok {
		sess.TwoFactorVerified = true
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.remove(token)
	return nil
}

func (s *SessionStore) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.userToks[userID]
	for token := range tokens {
		delete(s.byToken, token)
	}
	delete(s.userToks, userID)
	return len(tokens), nil
}

func (s *SessionStore) remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byToken[token]; ok {
		delete(s.byToken, token)
		if toks := s.userToks[sess.UserID]; toks != nil {
			delete(toks, token)
		}
	}
}

// ResetTokenStore keeps password reset tokens in a map.
type ResetTokenStore struct {
	mu      sync.RWMutex
	byToken map[string]*models.PasswordResetToken
}

func NewResetTokenStore() *ResetTokenStore {
	return &ResetTokenStore{byToken: make(map[string]*models.PasswordResetToken)}
}

var _ repository.ResetTokenRepository = (*ResetTokenStore)(nil)

func (s *ResetTokenStore) Create(_ context.Context, token *models.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()

	cp := *token
	s.byToken[token.Token] = &cp
	return nil
}

func (s *ResetTokenStore) GetByToken(_ context.Context, token string) (*models.PasswordResetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (s *ResetTokenStore) MarkUsed(_ context.Context, token string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byToken[token]
	if !ok {
		return repository.ErrNotFound
	}
	rt.UsedAt = &usedAt
	return nil
}
