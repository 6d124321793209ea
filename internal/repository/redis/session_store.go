package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"admin-auth-service/internal/client"
	"admin-auth-service/internal/models"
	"admin-auth-service/internal/session"
	"admin-auth-service/internal/util"
)

const (
	sessionPrefix      = "admin_session:"
	userSessionsPrefix = "admin_user_sessions:"
)

// SessionStore keeps sessions in Redis with a native TTL, so expiry needs no
// sweeper. A per-user set tracks live tokens for revoke-all on password
// reset.
type SessionStore struct {
	client *client.RedisClient
}

func NewSessionStore(client *client.RedisClient) *SessionStore {
	return &SessionStore{client: client}
}

var _ session.Store = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionPrefix+sess.Token, payload, ttl)
	pipe.SAdd(ctx, userSessionsPrefix+sess.UserID, sess.Token)
	pipe.Expire(ctx, userSessionsPrefix+sess.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store session",
			zap.String("user_id", sess.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	payload, found, err := s.client.GetResult(ctx, sessionPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !found {
		return nil, session.ErrNotFound
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// Redis TTL should have expired it already; belt and suspenders for
	// clock drift between instances
	if sess.IsExpired(time.Now().UTC()) {
		_ = s.Delete(ctx, token)
		return nil, session.ErrNotFound
	}

	return &sess, nil
}

func (s *SessionStore) MarkTwoFactorVerified(ctx context.Context, token string) error {
	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	sess.TwoFactorVerified = true
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return session.ErrNotFound
	}

	if err := s.client.Set(ctx, sessionPrefix+token, payload, ttl); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		if err == session.ErrNotFound {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionPrefix+token)
	pipe.SRem(ctx, userSessionsPrefix+sess.UserID, token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	setKey := userSessionsPrefix + userID

	tokens, err := s.client.SMembers(ctx, setKey)
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionPrefix+token)
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	util.Info("Revoked all sessions for user",
		zap.String("user_id", userID),
		zap.Int("count", len(tokens)))

	return len(tokens), nil
}
