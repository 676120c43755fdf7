package cloudscribe

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TOTP parameters per RFC 6238 with the defaults every major authenticator
// app uses.
const (
	totpPeriod = 30 * time.Second
	totpDigits = 6
	// totpSkew allows one step of clock drift either way.
	totpSkew = 1
)

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTwoFactorSecret produces a new base32 authenticator secret.
func GenerateTwoFactorSecret() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate two-factor secret")
	}
	return totpEncoding.EncodeToString(secret), nil
}

// ValidateTOTP checks an authenticator code against the secret, allowing
// one period of clock drift in either direction.
func ValidateTOTP(secret, code string, at time.Time) bool {
	code = NormalizeAuthenticatorCode(code)
	if len(code) != totpDigits || secret == "" {
		return false
	}

	key, err := totpEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return false
	}

	counter := uint64(at.Unix()) / uint64(totpPeriod/time.Second)
	for offset := -totpSkew; offset <= totpSkew; offset++ {
		expected := hotp(key, counter+uint64(int64(offset)))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}

	return false
}

// AuthenticatorCode computes the code an authenticator app would show for
// the secret at the given time.
func AuthenticatorCode(secret string, at time.Time) (string, error) {
	key, err := totpEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid authenticator secret")
	}
	counter := uint64(at.Unix()) / uint64(totpPeriod/time.Second)
	return hotp(key, counter), nil
}

// NormalizeAuthenticatorCode strips the spaces and dashes users type when
// copying codes from authenticator apps.
func NormalizeAuthenticatorCode(code string) string {
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

func hotp(key []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", totpDigits, value%mod)
}
