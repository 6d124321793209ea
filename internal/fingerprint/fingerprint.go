package fingerprint

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/spaolacci/murmur3"
)

// UnknownIP is the sentinel when no client-address header is present.
const UnknownIP = "unknown"

const fingerprintLength = 16

// ClientIP resolves the client address from proxy headers in priority order:
// Cloudflare first, then the reverse proxy's real-ip, then the first hop of
// x-forwarded-for.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("cf-connecting-ip")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("x-real-ip")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("x-forwarded-for"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return UnknownIP
}

// Fingerprint derives a stable 16-character pseudo-identity from the client's
// IP and header set. Identical inputs always hash identically; it is used as
// the rate-limit key and as a correlation id across audit entries.
func Fingerprint(ip, userAgent, acceptLanguage, acceptEncoding string) string {
	material := strings.Join([]string{ip, userAgent, acceptLanguage, acceptEncoding}, "|")

	h1, h2 := murmur3.Sum128([]byte(material))
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h1 >> (56 - 8*i))
		buf[8+i] = byte(h2 >> (56 - 8*i))
	}

	return hex.EncodeToString(buf)[:fingerprintLength]
}
