package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDistributionOutcome_RetryAfterSeconds(t *testing.T) {
	o := DistributionOutcome{}
	assert.Nil(t, o.RetryAfterSeconds())

	d := 90*time.Second + 10*time.Millisecond
	o.RetryAfter = &d
	assert.Equal(t, int64(91), *o.RetryAfterSeconds())

	d = 24 * time.Hour
	assert.Equal(t, int64(86400), *o.RetryAfterSeconds())
}

func TestChannel_Valid(t *testing.T) {
	assert.True(t, ChannelDiscord.Valid())
	assert.True(t, ChannelTelegram.Valid())
	assert.True(t, ChannelWeb.Valid())
	assert.False(t, Channel("slack").Valid())
	assert.False(t, Channel("").Valid())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("verify: %w", &IdentityLookupError{Username: "octocat", Cause: cause})

	var lookupErr *IdentityLookupError
	assert.True(t, errors.As(err, &lookupErr))
	assert.ErrorIs(t, err, cause)

	execErr := &ExecutionError{TxID: "0xabc", Cause: cause}
	assert.ErrorIs(t, execErr, cause)
	assert.Contains(t, execErr.Error(), "0xabc")

	vf := &VerificationFailure{Reasons: []FailureReason{ReasonAccountTooNew, ReasonInsufficientRepos}}
	assert.Equal(t, "verification failed: ACCOUNT_TOO_NEW, INSUFFICIENT_REPOS", vf.Error())
}
