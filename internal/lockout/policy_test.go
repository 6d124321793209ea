package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldLockExactlyAtThreshold(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)

	assert.False(t, p.ShouldLock(0))
	assert.False(t, p.ShouldLock(4))
	assert.True(t, p.ShouldLock(5))
	assert.True(t, p.ShouldLock(6))
}

func TestIsLocked(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)
	now := time.Now().UTC()

	assert.False(t, p.IsLocked(nil, now))

	past := now.Add(-time.Minute)
	assert.False(t, p.IsLocked(&past, now))

	future := now.Add(time.Minute)
	assert.True(t, p.IsLocked(&future, now))
}

func TestLockExpiry(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)
	now := time.Now().UTC()

	assert.Equal(t, now.Add(15*time.Minute), p.LockExpiry(now))
}
