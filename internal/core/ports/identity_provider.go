package ports

import (
	"context"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// IdentityProvider resolves a username to the provider profile.
// Returns domain.ErrIdentityNotFound when the account does not exist. Any other error
// means the provider could not answer.
type IdentityProvider interface {
	GetUser(ctx context.Context, username string) (*domain.GithubProfile, error)
}
