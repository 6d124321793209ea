package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"admin-auth-service/internal/client"
	"admin-auth-service/internal/models"
	"admin-auth-service/internal/util"
)

const clickhouseInsert = `INSERT INTO admin_audit_log (id, action, user_id, details, ip_address, user_agent, created_at)`

// ClickHouseSink buffers entries and flushes them in batches. ClickHouse is
// the durable analytical store for the audit trail; the table is append-only
// (MergeTree ordered by created_at, no mutations issued by this service).
type ClickHouseSink struct {
	client *client.ClickHouseClient

	mu     sync.Mutex
	buf    [][]interface{}
	maxBuf int

	stop chan struct{}
	done chan struct{}
}

func NewClickHouseSink(ch *client.ClickHouseClient, flushInterval time.Duration) *ClickHouseSink {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	s := &ClickHouseSink{
		client: ch,
		maxBuf: 100,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.flushLoop(flushInterval)
	return s
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, entry models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		details = []byte("{}")
	}

	s.mu.Lock()
	s.buf = append(s.buf, []interface{}{
		entry.ID,
		string(entry.Action),
		entry.UserID,
		string(details),
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	})
	full := len(s.buf) >= s.maxBuf
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush sends any buffered rows.
func (s *ClickHouseSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	if err := s.client.BatchInsert(ctx, clickhouseInsert, rows); err != nil {
		util.Error("clickhouse audit flush failed",
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *ClickHouseSink) flushLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = s.Flush(ctx)
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Close flushes the remaining buffer and stops the background flusher.
func (s *ClickHouseSink) Close() error {
	close(s.stop)
	<-s.done
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Flush(ctx)
}
