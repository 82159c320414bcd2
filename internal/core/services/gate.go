package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

const minRetryAfter = time.Second

// GateConfig holds the cooldown settings
type GateConfig struct {
	CooldownWindow time.Duration
	HoldTimeout    time.Duration
}

type gate struct {
	repo   ports.CooldownRepository
	window time.Duration
	hold   time.Duration
}

// NewGate returns a DistributionGate backed by the given cooldown ledger
func NewGate(repo ports.CooldownRepository, cfg GateConfig) *gate {
	return &gate{
		repo:   repo,
		window: cfg.CooldownWindow,
		hold:   cfg.HoldTimeout,
	}
}

// Reserve atomically checks the cooldown of the identity and, if it is free, holds it.
// Denials are returned as *domain.CooldownActiveError.
func (g *gate) Reserve(ctx context.Context, identityKey int64, username string, now time.Time) (*domain.Reservation, error) {
	res := &domain.Reservation{
		ID:          uuid.New(),
		IdentityKey: identityKey,
		Username:    username,
		ReservedAt:  now,
	}

	reserved, err := g.repo.Reserve(ctx, ports.ReserveParams{
		IdentityKey:   identityKey,
		Username:      username,
		ReservationID: res.ID,
		Now:           now,
		IssuedBefore:  now.Add(-g.window),
		StaleBefore:   now.Add(-g.hold),
	})
	if err != nil {
		return nil, fmt.Errorf("reserving cooldown slot: %w", err)
	}
	if reserved {
		log.Debug(ctx, "cooldown slot reserved", "identity", identityKey, "reservation", res.ID)
		return res, nil
	}

	record, err := g.repo.Get(ctx, identityKey)
	if errors.Is(err, domain.ErrCooldownRecordNotFound) {
		// the holder released between our write and this read
		return nil, &domain.CooldownActiveError{RetryAfter: minRetryAfter, InFlight: true}
	}
	if err != nil {
		return nil, fmt.Errorf("reading cooldown record: %w", err)
	}
	return nil, g.denial(record, now)
}

func (g *gate) denial(record *domain.CooldownRecord, now time.Time) *domain.CooldownActiveError {
	denial := &domain.CooldownActiveError{RetryAfter: minRetryAfter}
	if record.LastIssuedAt != nil {
		if left := g.window - now.Sub(*record.LastIssuedAt); left > 0 {
			denial.RetryAfter = left
		}
	}
	if record.Reserved() && record.ReservedAt != nil {
		left := g.hold - now.Sub(*record.ReservedAt)
		if left < minRetryAfter {
			left = minRetryAfter
		}
		if left > denial.RetryAfter || record.LastIssuedAt == nil {
			denial.RetryAfter = left
			denial.InFlight = true
		}
	}
	return denial
}

// MarkSubmitted records the transaction hash of the payout before it is broadcast
func (g *gate) MarkSubmitted(ctx context.Context, res *domain.Reservation, txID string) error {
	if err := g.repo.MarkSubmitted(ctx, res, txID); err != nil {
		return fmt.Errorf("recording payout intent: %w", err)
	}
	return nil
}

// Commit finalizes the cooldown record with the payout
func (g *gate) Commit(ctx context.Context, res *domain.Reservation, payout *domain.Payout) error {
	if err := g.repo.Commit(ctx, res, payout); err != nil {
		return fmt.Errorf("committing reservation %s: %w", res.ID, err)
	}
	log.Debug(ctx, "reservation committed", "identity", res.IdentityKey, "reservation", res.ID, "tx", payout.TxID)
	return nil
}

// Release drops the reservation, restoring the record to its previous state
func (g *gate) Release(ctx context.Context, res *domain.Reservation) error {
	if err := g.repo.Release(ctx, res); err != nil {
		return fmt.Errorf("releasing reservation %s: %w", res.ID, err)
	}
	log.Debug(ctx, "reservation released", "identity", res.IdentityKey, "reservation", res.ID)
	return nil
}
