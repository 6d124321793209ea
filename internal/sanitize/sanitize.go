package sanitize

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// Pure string/object transforms applied to untrusted input before it is
// stored or logged. None of these functions return errors; rejected values
// come back empty.

const (
	maxNameLength  = 50
	maxEmailLength = 254 // RFC 5321 path limit
	maxPhoneDigits = 15  // E.164
	maxVINLength   = 17
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	namePattern       = regexp.MustCompile(`[^a-zA-Z \-']`)
	nonDigitPattern   = regexp.MustCompile(`[^0-9]`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	zipCharPattern    = regexp.MustCompile(`[^0-9\-]`)
	sensitiveKeywords = []string{
		"password", "apikey", "api_key", "authorization", "secret",
		"token", "cookie", "credential", "private_key", "privatekey",
	}
)

// EscapeHTML escapes HTML-significant characters.
func EscapeHTML(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// StripTags removes anything that looks like an HTML tag.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// Clean trims whitespace, drops null bytes, and truncates to maxLen when
// maxLen > 0.
func Clean(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// Name keeps letters, spaces, hyphens, and apostrophes. Tags go first so
// markup text does not bleed into the kept characters.
func Name(s string) string {
	s = StripTags(s)
	s = namePattern.ReplaceAllString(s, "")
	return Clean(s, maxNameLength)
}

// Email lowercases and trims; the RFC length cap guards pathological input.
func Email(s string) string {
	return Clean(strings.ToLower(s), maxEmailLength)
}

// Phone keeps digits only, including a leading country-code digit.
func Phone(s string) string {
	digits := nonDigitPattern.ReplaceAllString(s, "")
	if len(digits) > maxPhoneDigits {
		digits = digits[:maxPhoneDigits]
	}
	return digits
}

// VIN uppercases and keeps alphanumerics.
func VIN(s string) string {
	s = nonAlnumPattern.ReplaceAllString(s, "")
	return Clean(strings.ToUpper(s), maxVINLength)
}

// ZIP keeps digits and hyphens, formatted as 5 or 5+4.
func ZIP(s string) string {
	s = zipCharPattern.ReplaceAllString(strings.TrimSpace(s), "")
	if i := strings.Index(s, "-"); i >= 0 {
		base := strings.ReplaceAll(s[:i], "-", "")
		ext := strings.ReplaceAll(s[i+1:], "-", "")
		if len(base) > 5 {
			base = base[:5]
		}
		if len(ext) > 4 {
			ext = ext[:4]
		}
		if ext == "" {
			return base
		}
		return base + "-" + ext
	}
	if len(s) > 9 {
		s = s[:9]
	}
	return s
}

// URL accepts only parseable http(s) URLs; anything else (javascript:,
// data:, garbage) comes back empty.
func URL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

// Object walks maps and slices, applying Clean to every string while leaving
// other value types untouched.
func Object(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return Clean(val, 0)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = Object(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = Object(inner)
		}
		return out
	default:
		return v
	}
}

// ForLogging replaces values of sensitive-looking keys with a fixed marker so
// user-supplied objects can be written to logs. Non-sensitive fields pass
// through unchanged; nested maps are walked.
func ForLogging(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = ForLogging(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
