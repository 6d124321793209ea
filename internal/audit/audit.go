package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"admin-auth-service/internal/models"
	"admin-auth-service/internal/sanitize"
	"admin-auth-service/internal/util"
)

// ErrUnknownAction is returned when an entry carries an action outside the
// defined vocabulary.
var ErrUnknownAction = errors.New("audit: unknown action")

// Sink receives finalized audit entries. Implementations must tolerate
// duplicate IDs (the recorder may retry).
type Sink interface {
	Name() string
	Write(ctx context.Context, entry models.AuditEntry) error
}

// Querier is implemented by sinks that can also serve the audit read path.
type Querier interface {
	Query(ctx context.Context, q Query) ([]models.AuditEntry, error)
}

// Query filters the audit read path. Zero values mean "no filter".
type Query struct {
	Action models.AuditAction
	UserID string
	Limit  int
}

// Recorder assembles entries and fans them out to every configured sink.
// Sink failures are logged and swallowed: an audit outage must never turn a
// successful login into a failed one.
type Recorder struct {
	sinks   []Sink
	querier Querier
	timeout time.Duration
}

func NewRecorder(sinks ...Sink) *Recorder {
	r := &Recorder{sinks: sinks, timeout: 5 * time.Second}
	for _, s := range sinks {
		if q, ok := s.(Querier); ok && r.querier == nil {
			r.querier = q
		}
	}
	return r
}

// Record finalizes and persists one audit event. Details are sanitized
// before leaving the process so secrets never reach a sink. Unknown actions
// are dropped, not stored.
func (r *Recorder) Record(ctx context.Context, action models.AuditAction, userID string, details map[string]interface{}, ip, userAgent string) {
	if !action.IsValid() {
		util.Warn("dropping audit entry with unknown action", zap.String("action", string(action)))
		return
	}

	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    userID,
		Details:   sanitize.ForLogging(details),
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}

	// detach from the request context so a client disconnect cannot lose
	// the entry, but still bound the fan-out
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(writeCtx)
	for _, sink := range r.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Write(gctx, entry); err != nil {
				util.Error("audit sink write failed",
					zap.String("sink", sink.Name()),
					zap.String("action", string(entry.Action)),
					zap.Error(err),
				)
			}
			// never propagate: one failing sink must not cancel the rest
			return nil
		})
	}
	_ = g.Wait()
}

// Search serves the audit read endpoint from the first sink that supports
// querying.
func (r *Recorder) Search(ctx context.Context, q Query) ([]models.AuditEntry, error) {
	if r.querier == nil {
		return nil, errors.New("audit: no queryable sink configured")
	}
	if q.Action != "" && !q.Action.IsValid() {
		return nil, ErrUnknownAction
	}
	return r.querier.Query(ctx, q)
}
