package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVIN(t *testing.T) {
	assert.Equal(t, "1GCVKNEC0MZ123456", VIN("  1gcvknec0mz123456  "))
	assert.Equal(t, "1GCVKNEC0MZ123456", VIN("1gcv-knec 0mz123456"))
	// over-long input is capped at 17
	assert.Len(t, VIN("1GCVKNEC0MZ1234567890"), 17)
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "john@example.com", Email("John@Example.COM"))
	assert.Equal(t, "a@b.co", Email("  a@b.co  "))
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "15551234567", Phone("+1 (555) 123-4567"))
	assert.Len(t, Phone("123456789012345678"), 15)
}

func TestName(t *testing.T) {
	assert.Equal(t, "O'Brien-Smith", Name("O'Brien-Smith<script>"))
	assert.Equal(t, "Ann", Name("<b>Ann</b>"))
	assert.Equal(t, "Mary Jane", Name("Mary Jane 99"))
}

func TestZIP(t *testing.T) {
	assert.Equal(t, "90210", ZIP(" 90210 "))
	assert.Equal(t, "90210-1234", ZIP("90210-1234"))
	assert.Equal(t, "90210", ZIP("90210-"))
	assert.Equal(t, "90210", ZIP("zip:90210"))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "", URL("javascript:alert(1)"))
	assert.Equal(t, "", URL("data:text/html;base64,PHNjcmlwdD4="))
	assert.Equal(t, "", URL("ftp://example.com/file"))
	assert.Equal(t, "", URL("://not a url"))
	assert.Equal(t, "https://example.com/a?b=c", URL("https://example.com/a?b=c"))
	assert.Equal(t, "http://example.com", URL("http://example.com"))
}

func TestCleanRemovesNullBytesAndTruncates(t *testing.T) {
	assert.Equal(t, "abc", Clean("  a\x00bc  ", 0))
	assert.Equal(t, "abcd", Clean("abcdefgh", 4))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "hello world", StripTags("<b>hello</b> <i>world</i>"))
	assert.Equal(t, "alert(1)", StripTags("<script>alert(1)</script>"))
}

func TestObjectRecurses(t *testing.T) {
	in := map[string]interface{}{
		"name": "  Alice\x00 ",
		"nested": map[string]interface{}{
			"note": " hi ",
			"n":    42,
		},
		"list": []interface{}{" x ", 1, true},
	}

	out := Object(in).(map[string]interface{})
	assert.Equal(t, "Alice", out["name"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "hi", nested["note"])
	assert.Equal(t, 42, nested["n"])
	list := out["list"].([]interface{})
	assert.Equal(t, "x", list[0])
	assert.Equal(t, 1, list[1])
	assert.Equal(t, true, list[2])
}

func TestForLoggingRedactsSensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"password":      "hunter2",
		"apiKey":        "k",
		"api_key":       "k",
		"Authorization": "Bearer x",
		"clientSecret":  "s",
		"session_token": "t",
		"email":         "a@b.co",
		"nested": map[string]interface{}{
			"password": "x",
			"plain":    "y",
		},
	}

	out := ForLogging(in)
	assert.Equal(t, "[REDACTED]", out["password"])
	assert.Equal(t, "[REDACTED]", out["apiKey"])
	assert.Equal(t, "[REDACTED]", out["api_key"])
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "[REDACTED]", out["clientSecret"])
	assert.Equal(t, "[REDACTED]", out["session_token"])
	assert.Equal(t, "a@b.co", out["email"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["password"])
	assert.Equal(t, "y", nested["plain"])
}

func TestForLoggingNil(t *testing.T) {
	assert.Nil(t, ForLogging(nil))
}
