package services

import (
	"context"
	"errors"
	"time"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

var errMalformedProfile = errors.New("malformed profile")

// VerificationPolicy holds the thresholds an account has to meet
type VerificationPolicy struct {
	MinAccountAgeDays int
	MinPublicRepos    int
}

// verificationCheck is a named predicate over a verdict. Checks run in order and every
// failing check adds its reason.
type verificationCheck struct {
	name   string
	reason domain.FailureReason
	pass   func(v *domain.IdentityVerdict) bool
}

type verifier struct {
	provider ports.IdentityProvider
	checks   []verificationCheck
	now      func() time.Time
}

// NewVerifier returns an IdentityVerifier that applies the policy to the profiles returned by provider
func NewVerifier(provider ports.IdentityProvider, policy VerificationPolicy) *verifier {
	return &verifier{
		provider: provider,
		checks:   policyChecks(policy),
		now:      time.Now,
	}
}

func policyChecks(policy VerificationPolicy) []verificationCheck {
	return []verificationCheck{
		{
			name:   "account_age",
			reason: domain.ReasonAccountTooNew,
			pass: func(v *domain.IdentityVerdict) bool {
				return v.AccountAgeDays >= policy.MinAccountAgeDays
			},
		},
		{
			name:   "public_repos",
			reason: domain.ReasonInsufficientRepos,
			pass: func(v *domain.IdentityVerdict) bool {
				return v.PublicRepoCount >= policy.MinPublicRepos
			},
		},
	}
}

// Verify resolves the username and evaluates the policy. A missing account is a verdict with
// ACCOUNT_NOT_FOUND; any other provider failure is an *domain.IdentityLookupError.
func (v *verifier) Verify(ctx context.Context, username string) (*domain.IdentityVerdict, error) {
	profile, err := v.provider.GetUser(ctx, username)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		log.Info(ctx, "github account not found", "username", username)
		return &domain.IdentityVerdict{
			Username: username,
			Verified: false,
			Reasons:  []domain.FailureReason{domain.ReasonAccountNotFound},
		}, nil
	}
	if err != nil {
		return nil, &domain.IdentityLookupError{Username: username, Cause: err}
	}
	if profile == nil || profile.ID <= 0 || profile.CreatedAt.IsZero() {
		return nil, &domain.IdentityLookupError{Username: username, Cause: errMalformedProfile}
	}

	verdict := &domain.IdentityVerdict{
		IdentityKey:     profile.ID,
		Username:        profile.Login,
		Reasons:         []domain.FailureReason{},
		AccountAgeDays:  accountAgeDays(profile.CreatedAt, v.now()),
		PublicRepoCount: max(profile.PublicRepos, 0),
	}
	if verdict.Username == "" {
		verdict.Username = username
	}

	for _, check := range v.checks {
		if !check.pass(verdict) {
			log.Debug(ctx, "verification check failed", "check", check.name, "username", username)
			verdict.Reasons = append(verdict.Reasons, check.reason)
		}
	}
	verdict.Verified = len(verdict.Reasons) == 0
	return verdict, nil
}

func accountAgeDays(createdAt, now time.Time) int {
	age := now.Sub(createdAt)
	if age < 0 {
		return 0
	}
	return int(age / (24 * time.Hour))
}
