package cloudscribe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cloudscribe "github.com/weedkiller/cloudscribe"
)

// base32 of the ASCII seed "12345678901234567890" from RFC 6238 appendix B.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestValidateTOTP(t *testing.T) {
	at := time.Unix(59, 0).UTC()

	t.Run("matches the reference vector", func(t *testing.T) {
		code, err := cloudscribe.AuthenticatorCode(rfcSecret, at)
		require.NoError(t, err)
		assert.Equal(t, "287082", code)
		assert.True(t, cloudscribe.ValidateTOTP(rfcSecret, code, at))
	})

	t.Run("tolerates one period of drift", func(t *testing.T) {
		code, err := cloudscribe.AuthenticatorCode(rfcSecret, at)
		require.NoError(t, err)

		assert.True(t, cloudscribe.ValidateTOTP(rfcSecret, code, at.Add(30*time.Second)))
		assert.True(t, cloudscribe.ValidateTOTP(rfcSecret, code, at.Add(-29*time.Second)))
		assert.False(t, cloudscribe.ValidateTOTP(rfcSecret, code, at.Add(5*time.Minute)))
	})

	t.Run("accepts codes with user formatting", func(t *testing.T) {
		assert.True(t, cloudscribe.ValidateTOTP(rfcSecret, "287 082", at))
		assert.True(t, cloudscribe.ValidateTOTP(rfcSecret, "287-082", at))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		assert.False(t, cloudscribe.ValidateTOTP(rfcSecret, "", at))
		assert.False(t, cloudscribe.ValidateTOTP(rfcSecret, "12345", at))
		assert.False(t, cloudscribe.ValidateTOTP("", "287082", at))
		assert.False(t, cloudscribe.ValidateTOTP("!!!not-base32!!!", "287082", at))
	})
}

func TestGenerateTwoFactorSecret(t *testing.T) {
	a, err := cloudscribe.GenerateTwoFactorSecret()
	require.NoError(t, err)
	b, err := cloudscribe.GenerateTwoFactorSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)

	code, err := cloudscribe.AuthenticatorCode(a, time.Now())
	require.NoError(t, err)
	assert.True(t, cloudscribe.ValidateTOTP(a, code, time.Now()))
}
