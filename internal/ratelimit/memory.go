package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in a mutex-guarded map. It is the default store
// for single-instance deployments and for tests; multi-instance deployments
// should use the Redis-backed store so counters are shared.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]recordEntry
	takes   int
}

type recordEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]recordEntry)}
}

func (s *MemoryStore) Take(_ context.Context, key string, cfg EndpointConfig, now time.Time, suspicion int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if ok && now.After(entry.expiresAt) {
		ok = false
	}

	rec := Apply(entry.rec, ok, cfg, now, suspicion)

	ttl := cfg.Window
	if until := rec.BlockedUntil.Sub(now); until > ttl {
		ttl = until
	}
	s.records[key] = recordEntry{rec: rec, expiresAt: now.Add(ttl)}

	s.takes++
	if s.takes%1024 == 0 {
		s.sweep(now)
	}

	return rec, nil
}

// sweep drops expired entries so idle keys do not accumulate. Called with
// the lock held.
func (s *MemoryStore) sweep(now time.Time) {
	for key, entry := range s.records {
		if now.After(entry.expiresAt) {
			delete(s.records, key)
		}
	}
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
