package twofactor

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// Engine produces and verifies TOTP material for the admin dashboard.
type Engine struct {
	issuer string
}

func NewEngine(issuer string) *Engine {
	return &Engine{issuer: issuer}
}

// GenerateSecret returns a fresh base32 TOTP secret.
func (e *Engine) GenerateSecret() (string, error) {
	buf := make([]byte, totpSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// ProvisioningURI builds the otpauth:// URI encoded into the setup QR code.
func (e *Engine) ProvisioningURI(email, secret string) string {
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", e.issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", "6")
	params.Set("period", fmt.Sprintf("%d", totpPeriod))

	label := url.PathEscape(e.issuer + ":" + email)
	return fmt.Sprintf("otpauth://totp/%s?%s", label, params.Encode())
}

// VerifyCode checks a 6-digit code against the secret, allowing one time
// step of clock drift in either direction. Anything that is not exactly six
// digits is rejected before touching the secret.
func (e *Engine) VerifyCode(code, secret string) bool {
	if !sixDigits.MatchString(code) {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// LooksLikeTOTP reports whether the submitted input should be routed to the
// TOTP check rather than the backup-code check. TOTP is tried first; backup
// codes are the fallback.
func LooksLikeTOTP(code string) bool {
	return sixDigits.MatchString(code)
}
