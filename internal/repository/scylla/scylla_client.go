package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"admin-auth-service/internal/config"
	"admin-auth-service/internal/util"
)

// PreparedStatements holds the statements the repositories execute. Every
// hot-path query is prepared once at startup.
type PreparedStatements struct {
	CreateUser        *gocql.Query
	CreateEmailToUser *gocql.Query
	GetUserByID       *gocql.Query
	GetUserIDByEmail  *gocql.Query
	UpdatePassword    *gocql.Query
	UpdateTwoFactor   *gocql.Query
	UpdateBackupCodes *gocql.Query
	RecordFailedLogin *gocql.Query
	ClearFailedLogins *gocql.Query

	CreateResetToken *gocql.Query
	GetResetToken    *gocql.Query
	MarkResetUsed    *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateUser = s.Session.Query(`
        INSERT INTO admin_users (
            user_id, email, role, password_hash, two_factor_enabled,
            two_factor_secret, backup_codes, failed_login_attempts,
            locked_until, last_login_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	// email_to_admin is the lookup table for the login path; emails are
	// stored lowercased
	prepared.CreateEmailToUser = s.Session.Query(`
        INSERT INTO email_to_admin (email, user_id, created_at)
        VALUES (?, ?, ?)`)

	prepared.GetUserByID = s.Session.Query(`
        SELECT user_id, email, role, password_hash, two_factor_enabled,
            two_factor_secret, backup_codes, failed_login_attempts,
            locked_until, last_login_at, created_at, updated_at
        FROM admin_users WHERE user_id = ?`)

	prepared.GetUserIDByEmail = s.Session.Query(`
        SELECT user_id FROM email_to_admin WHERE email = ?`)

	prepared.UpdatePassword = s.Session.Query(`
        UPDATE admin_users SET password_hash = ?, updated_at = ?
        WHERE user_id = ?`)

	prepared.UpdateTwoFactor = s.Session.Query(`
        UPDATE admin_users SET two_factor_enabled = ?, two_factor_secret = ?,
            backup_codes = ?, updated_at = ?
        WHERE user_id = ?`)

	prepared.UpdateBackupCodes = s.Session.Query(`
        UPDATE admin_users SET backup_codes = ?, updated_at = ?
        WHERE user_id = ?`)

	prepared.RecordFailedLogin = s.Session.Query(`
        UPDATE admin_users SET failed_login_attempts = ?, locked_until = ?, updated_at = ?
        WHERE user_id = ?`)

	prepared.ClearFailedLogins = s.Session.Query(`
        UPDATE admin_users SET failed_login_attempts = 0, locked_until = null,
            last_login_at = ?, updated_at = ?
        WHERE user_id = ?`)

	prepared.CreateResetToken = s.Session.Query(`
        INSERT INTO password_reset_tokens (token, token_id, user_id, used_at, expires_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?) USING TTL 86400`)

	prepared.GetResetToken = s.Session.Query(`
        SELECT token, token_id, user_id, used_at, expires_at, created_at
        FROM password_reset_tokens WHERE token = ?`)

	prepared.MarkResetUsed = s.Session.Query(`
        UPDATE password_reset_tokens SET used_at = ? WHERE token = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}
