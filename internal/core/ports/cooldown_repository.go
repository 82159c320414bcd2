package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// ReserveParams are the inputs of the atomic check-and-reserve write.
// The write succeeds only if the identity has no payout after IssuedBefore and no reservation
// newer than StaleBefore. Stale reservations that recorded a pending transaction are never taken over.
type ReserveParams struct {
	IdentityKey   int64
	Username      string
	ReservationID uuid.UUID
	Now           time.Time
	IssuedBefore  time.Time
	StaleBefore   time.Time
}

// CooldownRepository is the durable cooldown ledger
type CooldownRepository interface {
	Reserve(ctx context.Context, params ReserveParams) (bool, error)
	Get(ctx context.Context, identityKey int64) (*domain.CooldownRecord, error)
	MarkSubmitted(ctx context.Context, res *domain.Reservation, txID string) error
	Commit(ctx context.Context, res *domain.Reservation, payout *domain.Payout) error
	Release(ctx context.Context, res *domain.Reservation) error
	StaleReservations(ctx context.Context, before time.Time, limit int) ([]domain.CooldownRecord, error)
	// Payouts reads the payout history. Nothing in the request path depends on it; it is the
	// audit trail for operators.
	Payouts(ctx context.Context, identityKey int64, limit int) ([]domain.Payout, error)
}
