package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests use MinCost so the suite stays fast; production wiring uses cost 12.
func testHasher() *Hasher {
	return NewHasher(4)
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h := testHasher()

	hash, err := h.HashPassword("Correct-Horse-Battery-1")
	require.NoError(t, err)

	assert.True(t, h.VerifyPassword("Correct-Horse-Battery-1", hash))
	assert.False(t, h.VerifyPassword("Correct-Horse-Battery-1x", hash))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	h := testHasher()
	assert.False(t, h.VerifyPassword("whatever", "not-a-bcrypt-hash"))
	assert.False(t, h.VerifyPassword("whatever", ""))
}

func TestValidatePasswordCollectsAllViolations(t *testing.T) {
	res := ValidatePassword("short1!")
	assert.False(t, res.Valid)

	var mentionsLength bool
	for _, e := range res.Errors {
		if strings.Contains(e, "12 characters") {
			mentionsLength = true
		}
	}
	assert.True(t, mentionsLength, "expected a length violation, got %v", res.Errors)
	// short1! also misses an uppercase letter
	assert.GreaterOrEqual(t, len(res.Errors), 2)
}

func TestValidatePasswordMissingDigit(t *testing.T) {
	res := ValidatePassword("NoNumbersHere!")
	assert.False(t, res.Valid)

	var mentionsDigit bool
	for _, e := range res.Errors {
		if strings.Contains(e, "digit") {
			mentionsDigit = true
		}
	}
	assert.True(t, mentionsDigit, "expected a digit violation, got %v", res.Errors)
}

func TestValidatePasswordAccepted(t *testing.T) {
	res := ValidatePassword("Str0ng&Secure")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidatePasswordTable(t *testing.T) {
	cases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"all classes present", "Abcdefgh1234!", true},
		{"no special", "Abcdefgh1234", false},
		{"no upper", "abcdefgh1234!", false},
		{"no lower", "ABCDEFGH1234!", false},
		{"exactly min length", "Aa1!Aa1!Aa1!", true},
		{"one under min length", "Aa1!Aa1!Aa1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidatePassword(tc.password).Valid)
		})
	}
}
