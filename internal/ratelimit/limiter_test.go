package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllowsUpToLimit(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	cfg := limiter.ConfigFor("/api/valuation")
	require.Equal(t, 5, cfg.MaxRequests)

	for i := 0; i < cfg.MaxRequests; i++ {
		d, err := limiter.Check(ctx, "/api/valuation", "client-a", 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, cfg.MaxRequests-i-1, d.Remaining)
	}

	d, err := limiter.Check(ctx, "/api/valuation", "client-a", 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Blocked)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, 0)
	assert.Greater(t, d.ResetTime, time.Now().UnixMilli())
}

func TestCheckIsolatesClients(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Check(ctx, "/api/valuation", "client-a", 0)
		require.NoError(t, err)
	}

	d, err := limiter.Check(ctx, "/api/valuation", "client-b", 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "another client must not inherit the block")
}

func TestCheckIsolatesEndpoints(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Check(ctx, "/api/valuation", "client-a", 0)
		require.NoError(t, err)
	}

	d, err := limiter.Check(ctx, "/api/offers", "client-a", 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestUnknownEndpointUsesDefault(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	cfg := limiter.ConfigFor("/api/something-new")
	assert.Equal(t, 30, cfg.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Window)
}

func TestBlockPersistsAcrossWindowRollover(t *testing.T) {
	cfg := EndpointConfig{Window: time.Minute, MaxRequests: 2, BlockDuration: 10 * time.Minute, SuspicionThreshold: 3}
	now := time.Now().UTC()

	rec := Apply(Record{}, false, cfg, now, 0)
	rec = Apply(rec, true, cfg, now.Add(time.Second), 0)
	rec = Apply(rec, true, cfg, now.Add(2*time.Second), 0)
	require.True(t, rec.BlockedUntil.After(now))

	// well past the counting window but still inside the block
	later := now.Add(5 * time.Minute)
	rec2 := Apply(rec, true, cfg, later, 0)
	assert.Equal(t, rec, rec2, "blocked record must not roll over")

	d := decide(rec2, cfg, later)
	assert.False(t, d.Allowed)
	assert.True(t, d.Blocked)
}

func TestWindowRolloverResetsCount(t *testing.T) {
	cfg := EndpointConfig{Window: time.Minute, MaxRequests: 5, BlockDuration: 5 * time.Minute, SuspicionThreshold: 3}
	now := time.Now().UTC()

	rec := Apply(Record{}, false, cfg, now, 0)
	rec = Apply(rec, true, cfg, now.Add(time.Second), 0)
	require.Equal(t, 2, rec.Count)

	rec = Apply(rec, true, cfg, now.Add(cfg.Window+time.Second), 0)
	assert.Equal(t, 1, rec.Count)
	assert.True(t, rec.BlockedUntil.IsZero())
}

func TestRepeatOffenderGetsExtendedBlock(t *testing.T) {
	cfg := EndpointConfig{Window: time.Minute, MaxRequests: 1, BlockDuration: time.Minute, SuspicionThreshold: 2}
	now := time.Now().UTC()

	// first overflow: suspicion 1, normal block
	rec := Apply(Record{}, false, cfg, now, 0)
	rec = Apply(rec, true, cfg, now.Add(time.Second), 0)
	firstBlock := rec.BlockedUntil.Sub(now.Add(time.Second))
	assert.Equal(t, cfg.BlockDuration, firstBlock)

	// second overflow in a later window: suspicion 2, doubled block
	later := rec.BlockedUntil.Add(time.Second)
	rec = Apply(rec, true, cfg, later, 0)
	rec = Apply(rec, true, cfg, later.Add(time.Second), 0)
	assert.Equal(t, 2*cfg.BlockDuration, rec.BlockedUntil.Sub(later.Add(time.Second)))
}

func TestSuspicionHintCarriesIntoFreshRecord(t *testing.T) {
	cfg := EndpointConfig{Window: time.Minute, MaxRequests: 1, BlockDuration: time.Minute, SuspicionThreshold: 2}
	now := time.Now().UTC()

	rec := Apply(Record{}, false, cfg, now, 2)
	require.Equal(t, 2, rec.Suspicion)

	// already past-threshold suspicion means the first overflow blocks long
	rec = Apply(rec, true, cfg, now.Add(time.Second), 2)
	assert.Equal(t, 2*cfg.BlockDuration, rec.BlockedUntil.Sub(now.Add(time.Second)))
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	store := NewMemoryStore()
	cfg := EndpointConfig{Window: 10 * time.Millisecond, MaxRequests: 5, BlockDuration: 10 * time.Millisecond}
	now := time.Now().UTC()

	_, err := store.Take(context.Background(), "k1", cfg, now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	// a take after expiry sees a fresh record
	rec, err := store.Take(context.Background(), "k1", cfg, now.Add(time.Second), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
}
