package audit

import (
	"context"
	"sync"

	"admin-auth-service/internal/models"
)

// MemorySink keeps the most recent entries in a bounded in-process buffer.
// It backs tests and single-instance deployments without external sinks; it
// also serves the read path when Elasticsearch is disabled.
type MemorySink struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
	max     int
}

func NewMemorySink(max int) *MemorySink {
	if max <= 0 {
		max = 10000
	}
	return &MemorySink{max: max}
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) Write(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

// Query returns matching entries newest first.
func (s *MemorySink) Query(_ context.Context, q Query) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	out := make([]models.AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
