package fingerprint

import (
	"context"
	"net/http"
	"strings"
)

// RequestContext is an immutable snapshot of the client-identifying request
// attributes, built once at the HTTP boundary. Business logic reads from this
// value instead of reaching into the raw request.
type RequestContext struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Fingerprint    string
}

type contextKey struct{}

// NewRequestContext snapshots the request.
func NewRequestContext(r *http.Request) RequestContext {
	ip := ClientIP(r)
	ua := r.Header.Get("user-agent")
	lang := r.Header.Get("accept-language")
	enc := r.Header.Get("accept-encoding")

	return RequestContext{
		IP:             ip,
		UserAgent:      ua,
		AcceptLanguage: lang,
		AcceptEncoding: enc,
		Fingerprint:    Fingerprint(ip, ua, lang, enc),
	}
}

// WithRequestContext stores the snapshot on the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the snapshot; a zero value means the middleware did
// not run, which only happens in tests.
func FromContext(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(contextKey{}).(RequestContext)
	return rc
}

var botUASubstrings = []string{
	"bot", "crawler", "spider", "scraper", "curl/", "wget/",
	"python-requests", "go-http-client", "headless",
}

// SuspicionScore grades how bot-like the client looks. Each heuristic adds a
// point; the rate limiter folds the score into its block decisions.
func (rc RequestContext) SuspicionScore() int {
	score := 0

	if rc.UserAgent == "" {
		score += 2
	} else {
		lower := strings.ToLower(rc.UserAgent)
		for _, marker := range botUASubstrings {
			if strings.Contains(lower, marker) {
				score += 2
				break
			}
		}
	}

	if rc.AcceptLanguage == "" {
		score++
	}
	if rc.AcceptEncoding == "" {
		score++
	}
	if rc.IP == UnknownIP {
		score++
	}

	return score
}
