package cloudscribe

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RecoveryCodeCount is how many codes a fresh batch contains.
const RecoveryCodeCount = 10

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateRecoveryCodes produces a batch of one-time codes. The cleartext
// codes go to the user exactly once; only their hashes are stored on the
// account.
func GenerateRecoveryCodes() (codes []string, hashes []string, err error) {
	codes = make([]string, 0, RecoveryCodeCount)
	hashes = make([]string, 0, RecoveryCodeCount)

	for i := 0; i < RecoveryCodeCount; i++ {
		raw := make([]byte, 10)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate recovery codes")
		}

		code := strings.ToLower(recoveryEncoding.EncodeToString(raw))
		codes = append(codes, code[:8]+"-"+code[8:])
		hashes = append(hashes, HashRecoveryCode(code))
	}

	return codes, hashes, nil
}

// HashRecoveryCode hashes a normalized recovery code for storage and
// comparison.
func HashRecoveryCode(code string) string {
	normalized := NormalizeRecoveryCode(code)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeRecoveryCode removes separators and whitespace so a code
// matches however the user retyped it.
func NormalizeRecoveryCode(code string) string {
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToLower(code)
}

// ConsumeRecoveryCode checks the code against the stored hashes and, on a
// match, returns the remaining hashes with the used one removed. Codes are
// strictly single-use.
func ConsumeRecoveryCode(stored []string, code string) (remaining []string, ok bool) {
	target := HashRecoveryCode(code)
	for i, hash := range stored {
		if hash == target {
			remaining = make([]string, 0, len(stored)-1)
			remaining = append(remaining, stored[:i]...)
			remaining = append(remaining, stored[i+1:]...)
			return remaining, true
		}
	}
	return stored, false
}
