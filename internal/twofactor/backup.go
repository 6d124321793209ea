package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BackupCodeCount codes are minted per 2FA-enable event.
	BackupCodeCount = 10

	backupGroupLength = 4
	backupAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateBackupCodes mints a batch of one-time recovery codes formatted as
// two 4-character groups (e.g. A1B2-C3D4), all distinct within the batch.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	seen := make(map[string]bool, BackupCodeCount)

	for len(codes) < BackupCodeCount {
		code, err := randomBackupCode()
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	return codes, nil
}

func randomBackupCode() (string, error) {
	var b strings.Builder
	for i := 0; i < backupGroupLength*2; i++ {
		if i == backupGroupLength {
			b.WriteByte('-')
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		b.WriteByte(backupAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// NormalizeBackupCode strips spaces and dashes and uppercases, so users can
// type the code in whatever shape their password manager kept it.
func NormalizeBackupCode(code string) string {
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToUpper(code)
}

// HashBackupCode hashes a single code for storage. Codes are hashed in their
// normalized form so either presentation verifies.
func (e *Engine) HashBackupCode(code string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeBackupCode(code)), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash backup code: %w", err)
	}
	return string(hash), nil
}

// HashBackupCodes hashes a whole batch, preserving order.
func (e *Engine) HashBackupCodes(codes []string, cost int) ([]string, error) {
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hash, err := e.HashBackupCode(code, cost)
		if err != nil {
			return nil, err
		}
		hashes[i] = hash
	}
	return hashes, nil
}

// VerifyBackupCode compares the submitted code against every stored hash and
// returns the index of the match, or -1. Every hash is checked even after a
// match so verification time does not vary with the code's position.
func (e *Engine) VerifyBackupCode(submitted string, storedHashes []string) (int, bool) {
	normalized := []byte(NormalizeBackupCode(submitted))

	matched := -1
	for i, hash := range storedHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), normalized) == nil && matched == -1 {
			matched = i
		}
	}

	return matched, matched >= 0
}
