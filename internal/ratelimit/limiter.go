package ratelimit

import (
	"context"
	"time"
)

// EndpointConfig tunes the sliding window for one endpoint.
type EndpointConfig struct {
	Window             time.Duration
	MaxRequests        int
	BlockDuration      time.Duration
	SuspicionThreshold int
}

// Record is the per-(endpoint, client) counter state. It lives in a store
// with a TTL; nothing here is persisted durably.
type Record struct {
	Count        int
	WindowStart  time.Time
	BlockedUntil time.Time
	Suspicion    int
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool  `json:"allowed"`
	Blocked    bool  `json:"blocked"`
	Remaining  int   `json:"remaining"`
	RetryAfter int   `json:"retryAfter,omitempty"` // seconds until reset
	ResetTime  int64 `json:"resetTime"`            // unix milliseconds
}

// Store applies one request attempt atomically per key. The increment, the
// window rollover, and the block transition all happen inside the store so
// concurrent checks on the same key cannot corrupt the count. suspicion is a
// heuristic hint folded into fresh records.
type Store interface {
	Take(ctx context.Context, key string, cfg EndpointConfig, now time.Time, suspicion int) (Record, error)
}

// Limiter is the policy layer: it resolves the endpoint's config, composes
// the storage key, and converts record state into a Decision.
type Limiter struct {
	store      Store
	configs    map[string]EndpointConfig
	defaultCfg EndpointConfig
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store:      store,
		configs:    endpointConfigs(),
		defaultCfg: defaultConfig,
	}
}

// ConfigFor returns the endpoint's config, falling back to the default for
// unlisted endpoints.
func (l *Limiter) ConfigFor(endpoint string) EndpointConfig {
	if cfg, ok := l.configs[endpoint]; ok {
		return cfg
	}
	return l.defaultCfg
}

// Check applies one request against (endpoint, clientKey). Distinct client
// keys never share state.
func (l *Limiter) Check(ctx context.Context, endpoint, clientKey string, suspicion int) (Decision, error) {
	cfg := l.ConfigFor(endpoint)
	now := time.Now().UTC()

	rec, err := l.store.Take(ctx, endpoint+":"+clientKey, cfg, now, suspicion)
	if err != nil {
		return Decision{}, err
	}

	return decide(rec, cfg, now), nil
}

func decide(rec Record, cfg EndpointConfig, now time.Time) Decision {
	if rec.BlockedUntil.After(now) {
		return Decision{
			Allowed:    false,
			Blocked:    true,
			Remaining:  0,
			RetryAfter: secondsUntil(rec.BlockedUntil, now),
			ResetTime:  rec.BlockedUntil.UnixMilli(),
		}
	}

	windowEnd := rec.WindowStart.Add(cfg.Window)
	remaining := cfg.MaxRequests - rec.Count
	if remaining < 0 {
		remaining = 0
	}

	if rec.Count > cfg.MaxRequests {
		return Decision{
			Allowed:    false,
			Blocked:    true,
			Remaining:  0,
			RetryAfter: secondsUntil(windowEnd, now),
			ResetTime:  windowEnd.UnixMilli(),
		}
	}

	return Decision{
		Allowed:   true,
		Blocked:   false,
		Remaining: remaining,
		ResetTime: windowEnd.UnixMilli(),
	}
}

func secondsUntil(t, now time.Time) int {
	secs := int((t.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Apply is the shared record transition used by every store implementation.
// Callers must hold whatever per-key exclusivity their storage provides.
func Apply(rec Record, exists bool, cfg EndpointConfig, now time.Time, suspicion int) Record {
	// an active block freezes the record
	if exists && rec.BlockedUntil.After(now) {
		return rec
	}

	if !exists || !now.Before(rec.WindowStart.Add(cfg.Window)) {
		fresh := Record{Count: 1, WindowStart: now, Suspicion: suspicion}
		if exists && rec.Suspicion > suspicion {
			fresh.Suspicion = rec.Suspicion
		}
		return fresh
	}

	rec.Count++
	if rec.Count > cfg.MaxRequests {
		rec.Suspicion++
		block := cfg.BlockDuration
		if cfg.SuspicionThreshold > 0 && rec.Suspicion >= cfg.SuspicionThreshold {
			block *= 2
		}
		rec.BlockedUntil = now.Add(block)
	}

	return rec
}
