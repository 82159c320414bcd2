package ports

import (
	"context"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// IdentityVerifier checks a username against the verification policy.
// A verdict with Verified=false is a policy denial; an *domain.IdentityLookupError means the
// provider could not be consulted.
type IdentityVerifier interface {
	Verify(ctx context.Context, username string) (*domain.IdentityVerdict, error)
}
