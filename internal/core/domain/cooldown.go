package domain

import (
	"time"

	"github.com/google/uuid"
)

// CooldownRecord is the durable per GitHub account state used to space payouts.
// LastIssuedAt and LastTxID describe the most recent payout; the reservation fields
// describe a payout in flight.
type CooldownRecord struct {
	IdentityKey   int64
	Username      string
	LastIssuedAt  *time.Time
	LastTxID      *string
	ReservationID *uuid.UUID
	ReservedAt    *time.Time
	PendingTxID   *string
	PendingWallet *string
	CreatedAt     time.Time
}

// Reserved tells whether a payout is in flight for the record
func (c *CooldownRecord) Reserved() bool {
	return c.ReservationID != nil
}

// Reservation is the exclusive hold on an identity's cooldown slot.
// WalletAddress is recorded together with the pending transaction.
type Reservation struct {
	ID            uuid.UUID
	IdentityKey   int64
	Username      string
	ReservedAt    time.Time
	WalletAddress string
}

// Payout is the history entry written when a reservation is committed
type Payout struct {
	ID            uuid.UUID
	IdentityKey   int64
	Username      string
	WalletAddress string
	TxID          string
	AmountWei     string
	BuilderID     string
	Channel       Channel
	IssuedAt      time.Time
}
