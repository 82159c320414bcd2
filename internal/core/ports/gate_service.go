package ports

import (
	"context"
	"time"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// DistributionGate decides whether an identity may receive a payout now and holds the slot
// while the payout runs.
type DistributionGate interface {
	// Reserve returns a reservation or a *domain.CooldownActiveError
	Reserve(ctx context.Context, identityKey int64, username string, now time.Time) (*domain.Reservation, error)
	// MarkSubmitted records the transaction about to be broadcast for the reservation
	MarkSubmitted(ctx context.Context, res *domain.Reservation, txID string) error
	// Commit finalizes the cooldown record with the payout
	Commit(ctx context.Context, res *domain.Reservation, payout *domain.Payout) error
	// Release returns the identity to its state before the reservation
	Release(ctx context.Context, res *domain.Reservation) error
}
