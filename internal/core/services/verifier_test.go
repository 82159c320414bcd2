package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	v := NewVerifier(h.github, VerificationPolicy{MinAccountAgeDays: 30, MinPublicRepos: 1})
	v.now = h.clock.Now

	h.github.add("newbie", 42, h.daysAgo(10), 3)
	h.github.add("veteran", 7, h.daysAgo(400), 5)
	h.github.add("lurker", 8, h.daysAgo(400), 0)
	h.github.add("fresh-empty", 9, h.daysAgo(1), 0)
	h.github.add("borderline", 10, h.daysAgo(30), 1)

	t.Run("account too new", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "newbie")
		require.NoError(t, err)
		assert.False(t, verdict.Verified)
		assert.Equal(t, int64(42), verdict.IdentityKey)
		assert.Equal(t, []domain.FailureReason{domain.ReasonAccountTooNew}, verdict.Reasons)
		assert.Equal(t, 10, verdict.AccountAgeDays)
		assert.Equal(t, 3, verdict.PublicRepoCount)
	})

	t.Run("verified", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "veteran")
		require.NoError(t, err)
		assert.True(t, verdict.Verified)
		assert.Empty(t, verdict.Reasons)
		assert.Equal(t, int64(7), verdict.IdentityKey)
		assert.Equal(t, 400, verdict.AccountAgeDays)
	})

	t.Run("no public repos", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "lurker")
		require.NoError(t, err)
		assert.False(t, verdict.Verified)
		assert.Equal(t, []domain.FailureReason{domain.ReasonInsufficientRepos}, verdict.Reasons)
	})

	t.Run("every failing check is reported in order", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "fresh-empty")
		require.NoError(t, err)
		assert.Equal(t, []domain.FailureReason{domain.ReasonAccountTooNew, domain.ReasonInsufficientRepos}, verdict.Reasons)
	})

	t.Run("thresholds are inclusive", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "borderline")
		require.NoError(t, err)
		assert.True(t, verdict.Verified)
	})

	t.Run("account not found", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, verdict.Verified)
		assert.Equal(t, []domain.FailureReason{domain.ReasonAccountNotFound}, verdict.Reasons)
		assert.Zero(t, verdict.IdentityKey)
	})

	t.Run("username is canonicalized from the provider", func(t *testing.T) {
		verdict, err := v.Verify(ctx, "VETERAN")
		require.NoError(t, err)
		assert.Equal(t, "veteran", verdict.Username)
	})
}

func TestVerifier_ConfiguredThresholds(t *testing.T) {
	h := newHarness()
	h.github.add("builder", 11, h.daysAgo(100), 2)
	v := NewVerifier(h.github, VerificationPolicy{MinAccountAgeDays: 365, MinPublicRepos: 5})
	v.now = h.clock.Now

	verdict, err := v.Verify(context.Background(), "builder")
	require.NoError(t, err)
	assert.Equal(t, []domain.FailureReason{domain.ReasonAccountTooNew, domain.ReasonInsufficientRepos}, verdict.Reasons)
}

func TestVerifier_LookupErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	v := NewVerifier(h.github, VerificationPolicy{MinAccountAgeDays: 30, MinPublicRepos: 1})
	v.now = h.clock.Now

	t.Run("provider unavailable", func(t *testing.T) {
		cause := errors.New("github returned 502")
		h.github.err = cause
		defer func() { h.github.err = nil }()

		verdict, err := v.Verify(ctx, "anyone")
		assert.Nil(t, verdict)
		var lookupErr *domain.IdentityLookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("malformed profile", func(t *testing.T) {
		h.github.add("broken", 0, h.daysAgo(100), 3)
		_, err := v.Verify(ctx, "broken")
		var lookupErr *domain.IdentityLookupError
		require.ErrorAs(t, err, &lookupErr)
	})
}
