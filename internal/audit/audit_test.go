package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth-service/internal/models"
)

type failingSink struct{ calls int32 }

func (f *failingSink) Name() string { return "failing" }
func (f *failingSink) Write(context.Context, models.AuditEntry) error {
	atomic.AddInt32(&f.calls, 1)
	return errors.New("sink down")
}

func TestRecordWritesToAllSinks(t *testing.T) {
	mem := NewMemorySink(0)
	rec := NewRecorder(mem)

	rec.Record(context.Background(), models.AuditLogin, "user-1",
		map[string]interface{}{"email": "admin@example.com"}, "1.2.3.4", "Mozilla/5.0")

	require.Equal(t, 1, mem.Len())

	entries, err := mem.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, models.AuditLogin, e.Action)
	assert.Equal(t, "user-1", e.UserID)
	assert.Equal(t, "1.2.3.4", e.IPAddress)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestRecordDropsUnknownAction(t *testing.T) {
	mem := NewMemorySink(0)
	rec := NewRecorder(mem)

	rec.Record(context.Background(), models.AuditAction("made_up"), "user-1", nil, "1.2.3.4", "ua")

	assert.Equal(t, 0, mem.Len())
}

func TestRecordContinuesPastFailingSink(t *testing.T) {
	failing := &failingSink{}
	mem := NewMemorySink(0)
	rec := NewRecorder(failing, mem)

	rec.Record(context.Background(), models.AuditLogout, "user-1", nil, "1.2.3.4", "ua")

	assert.Equal(t, int32(1), atomic.LoadInt32(&failing.calls))
	assert.Equal(t, 1, mem.Len(), "healthy sink still receives the entry")
}

func TestRecordRedactsSensitiveDetails(t *testing.T) {
	mem := NewMemorySink(0)
	rec := NewRecorder(mem)

	rec.Record(context.Background(), models.AuditFailedLogin, "",
		map[string]interface{}{
			"email":    "admin@example.com",
			"password": "hunter2hunter2!",
			"reason":   "invalid_credentials",
		}, "1.2.3.4", "ua")

	entries, err := mem.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "[REDACTED]", entries[0].Details["password"])
	assert.Equal(t, "invalid_credentials", entries[0].Details["reason"])
}

func TestRecordSurvivesCanceledRequestContext(t *testing.T) {
	mem := NewMemorySink(0)
	rec := NewRecorder(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Record(ctx, models.AuditSessionRevoked, "user-1", nil, "1.2.3.4", "ua")

	assert.Equal(t, 1, mem.Len())
}

func TestMemorySinkQueryFilters(t *testing.T) {
	mem := NewMemorySink(0)
	rec := NewRecorder(mem)
	ctx := context.Background()

	rec.Record(ctx, models.AuditLogin, "user-1", nil, "1.1.1.1", "ua")
	rec.Record(ctx, models.AuditLogout, "user-1", nil, "1.1.1.1", "ua")
	rec.Record(ctx, models.AuditLogin, "user-2", nil, "2.2.2.2", "ua")

	byAction, err := rec.Search(ctx, Query{Action: models.AuditLogin})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byUser, err := rec.Search(ctx, Query{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	both, err := rec.Search(ctx, Query{Action: models.AuditLogout, UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, models.AuditLogout, both[0].Action)
}

func TestSearchRejectsUnknownAction(t *testing.T) {
	rec := NewRecorder(NewMemorySink(0))
	_, err := rec.Search(context.Background(), Query{Action: "nope"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestMemorySinkBounded(t *testing.T) {
	mem := NewMemorySink(5)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, mem.Write(ctx, models.AuditEntry{ID: "e", Action: models.AuditLogin}))
	}
	assert.Equal(t, 5, mem.Len())
}
