package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth-service/internal/config"
)

func localManager() *Manager {
	cfg := &config.Config{}
	cfg.KMS.Enabled = false
	return NewManager(cfg, nil)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	env, err := m.Encrypt(ctx, "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotEmpty(t, env.EncryptedValue)
	assert.NotEmpty(t, env.EncryptedDEK)
	assert.Equal(t, "v1", env.Version)

	plain, err := m.Decrypt(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plain)
}

func TestDecryptWithColdCache(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	env, err := m.Encrypt(ctx, "secret-value")
	require.NoError(t, err)

	m.ClearCache()

	plain, err := m.Decrypt(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", plain)
}

func TestDecryptAfterRestart(t *testing.T) {
	ctx := context.Background()

	sealed, err := localManager().SealString(ctx, "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	// a fresh manager has no cached DEKs, as after a process restart
	opened, err := localManager().OpenString(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
}

func TestCiphertextDiffersPerEncryption(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	a, err := m.Encrypt(ctx, "same input")
	require.NoError(t, err)
	b, err := m.Encrypt(ctx, "same input")
	require.NoError(t, err)

	assert.NotEqual(t, a.EncryptedValue, b.EncryptedValue)
}

func TestSealOpenString(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	sealed, err := m.SealString(ctx, "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

	opened, err := m.OpenString(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
}

func TestSealStringEmptyPassthrough(t *testing.T) {
	m := localManager()
	ctx := context.Background()

	sealed, err := m.SealString(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := m.OpenString(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestOpenStringReportsBadEnvelope(t *testing.T) {
	m := localManager()
	_, err := m.OpenString(context.Background(), "not json")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
