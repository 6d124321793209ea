package lockout

import (
	"time"
)

// Policy implements temporary account lockout after repeated failed password
// checks. The failed-attempt counter itself lives on the AdminUser record;
// this package only decides.
type Policy struct {
	maxAttempts int
	duration    time.Duration
}

func NewPolicy(maxAttempts int, duration time.Duration) *Policy {
	return &Policy{maxAttempts: maxAttempts, duration: duration}
}

// IsLocked reports whether a lock is currently in force.
func (p *Policy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ShouldLock reports whether the attempt counter has crossed the threshold.
func (p *Policy) ShouldLock(failedAttempts int) bool {
	return failedAttempts >= p.maxAttempts
}

// LockExpiry returns when a lock placed now ends.
func (p *Policy) LockExpiry(now time.Time) time.Time {
	return now.Add(p.duration)
}

// MaxAttempts exposes the threshold for response payloads.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}
