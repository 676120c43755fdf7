package cloudscribe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	cloudscribe "github.com/weedkiller/cloudscribe"
)

func TestSignInOutcomeString(t *testing.T) {
	assert.Equal(t, "not-attempted", cloudscribe.OutcomeNotAttempted.String())
	assert.Equal(t, "failed", cloudscribe.OutcomeFailed.String())
	assert.Equal(t, "locked-out", cloudscribe.OutcomeLockedOut.String())
	assert.Equal(t, "two-factor-required", cloudscribe.OutcomeTwoFactorRequired.String())
	assert.Equal(t, "success", cloudscribe.OutcomeSuccess.String())

	assert.True(t, cloudscribe.OutcomeSuccess.Succeeded())
	assert.False(t, cloudscribe.OutcomeTwoFactorRequired.Succeeded())
}

func TestAddRejectReasonDeduplicates(t *testing.T) {
	template := &cloudscribe.LoginResultTemplate{}

	template.AddRejectReason("reason one")
	template.AddRejectReason("reason one")
	template.AddRejectReason("reason two")
	template.AddRejectReason("")

	assert.Equal(t, []string{"reason one", "reason two"}, template.RejectReasons)
	assert.True(t, template.Rejected())
}
