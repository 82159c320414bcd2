package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/db"
)

const cooldownColumns = `identity_key, username, last_issued_at, last_tx_id, reservation_id::text, reserved_at, pending_tx_id, pending_wallet, created_at`

// cooldown repository
type cooldown struct {
	conn db.Querier
}

// NewCooldown creates a new cooldown ledger backed by postgres
func NewCooldown(conn db.Querier) ports.CooldownRepository {
	return &cooldown{conn}
}

// Reserve holds the identity if it is out of cooldown and not already held. The whole check
// is a single conditional upsert so concurrent callers can't both win.
func (c *cooldown) Reserve(ctx context.Context, p ports.ReserveParams) (bool, error) {
	const reserve = `
INSERT INTO cooldowns (identity_key, username, reservation_id, reserved_at, created_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (identity_key) DO UPDATE
SET reservation_id = EXCLUDED.reservation_id,
    reserved_at    = EXCLUDED.reserved_at,
    pending_tx_id  = NULL,
    pending_wallet = NULL
WHERE (cooldowns.last_issued_at IS NULL OR cooldowns.last_issued_at <= $5)
  AND (cooldowns.reservation_id IS NULL OR (cooldowns.reserved_at <= $6 AND cooldowns.pending_tx_id IS NULL))
RETURNING reservation_id::text;`

	var got string
	err := c.conn.QueryRow(ctx, reserve,
		p.IdentityKey,
		p.Username,
		p.ReservationID,
		p.Now,
		p.IssuedBefore,
		p.StaleBefore,
	).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not reserve cooldown: %w", err)
	}
	return got == p.ReservationID.String(), nil
}

// Get returns the cooldown record of the identity
func (c *cooldown) Get(ctx context.Context, identityKey int64) (*domain.CooldownRecord, error) {
	const query = `SELECT ` + cooldownColumns + ` FROM cooldowns WHERE identity_key = $1;`
	rec, err := scanCooldown(c.conn.QueryRow(ctx, query, identityKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCooldownRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not get cooldown: %w", err)
	}
	return rec, nil
}

// MarkSubmitted stores the transaction and destination of the payout on the reservation
func (c *cooldown) MarkSubmitted(ctx context.Context, res *domain.Reservation, txID string) error {
	const update = `
UPDATE cooldowns
SET pending_tx_id = $3, pending_wallet = $4
WHERE identity_key = $1 AND reservation_id = $2;`

	tag, err := c.conn.Exec(ctx, update, res.IdentityKey, res.ID, txID, res.WalletAddress)
	if err != nil {
		return fmt.Errorf("could not mark reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationLost
	}
	return nil
}

// Commit moves the reservation into the last issued fields and appends the payout to the history
func (c *cooldown) Commit(ctx context.Context, res *domain.Reservation, payout *domain.Payout) error {
	const (
		update = `
UPDATE cooldowns
SET last_issued_at = $3,
    last_tx_id     = $4,
    username       = $5,
    reservation_id = NULL,
    reserved_at    = NULL,
    pending_tx_id  = NULL,
    pending_wallet = NULL
WHERE identity_key = $1 AND reservation_id = $2;`
		insertPayout = `
INSERT INTO payouts (id, identity_key, username, wallet_address, tx_id, amount_wei, builder_id, channel, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	)

	amount := payout.AmountWei
	if amount == "" {
		amount = "0"
	}
	return c.conn.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, update, res.IdentityKey, res.ID, payout.IssuedAt, payout.TxID, payout.Username)
		if err != nil {
			return fmt.Errorf("could not commit cooldown: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrReservationLost
		}
		_, err = tx.Exec(ctx, insertPayout,
			payout.ID,
			payout.IdentityKey,
			payout.Username,
			payout.WalletAddress,
			payout.TxID,
			amount,
			payout.BuilderID,
			string(payout.Channel),
			payout.IssuedAt,
		)
		if err != nil {
			return fmt.Errorf("could not insert payout: %w", err)
		}
		return nil
	})
}

// Release drops the reservation. A record created by the reservation is deleted, an older
// one keeps its last issued fields untouched.
func (c *cooldown) Release(ctx context.Context, res *domain.Reservation) error {
	const (
		deleteNew = `
DELETE FROM cooldowns
WHERE identity_key = $1 AND reservation_id = $2 AND last_issued_at IS NULL;`
		clear = `
UPDATE cooldowns
SET reservation_id = NULL, reserved_at = NULL, pending_tx_id = NULL, pending_wallet = NULL
WHERE identity_key = $1 AND reservation_id = $2;`
	)

	return c.conn.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteNew, res.IdentityKey, res.ID)
		if err != nil {
			return fmt.Errorf("could not release cooldown: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, clear, res.IdentityKey, res.ID)
		if err != nil {
			return fmt.Errorf("could not release cooldown: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrReservationLost
		}
		return nil
	})
}

// StaleReservations returns the records holding a reservation taken at or before the given time
func (c *cooldown) StaleReservations(ctx context.Context, before time.Time, limit int) ([]domain.CooldownRecord, error) {
	const query = `
SELECT ` + cooldownColumns + `
FROM cooldowns
WHERE reservation_id IS NOT NULL AND reserved_at <= $1
ORDER BY reserved_at
LIMIT $2;`

	rows, err := c.conn.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list stale reservations: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CooldownRecord, 0)
	for rows.Next() {
		rec, err := scanCooldown(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Payouts returns the most recent payouts of the identity, newest first
func (c *cooldown) Payouts(ctx context.Context, identityKey int64, limit int) ([]domain.Payout, error) {
	const query = `
SELECT id, identity_key, username, wallet_address, tx_id, amount_wei::text, builder_id, channel, issued_at
FROM payouts
WHERE identity_key = $1
ORDER BY issued_at DESC
LIMIT $2;`

	rows, err := c.conn.Query(ctx, query, identityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list payouts: %w", err)
	}
	defer rows.Close()

	payouts := make([]domain.Payout, 0)
	for rows.Next() {
		var p domain.Payout
		var channel string
		if err := rows.Scan(&p.ID, &p.IdentityKey, &p.Username, &p.WalletAddress, &p.TxID, &p.AmountWei, &p.BuilderID, &channel, &p.IssuedAt); err != nil {
			return nil, err
		}
		p.Channel = domain.Channel(channel)
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func scanCooldown(row pgx.Row) (*domain.CooldownRecord, error) {
	var rec domain.CooldownRecord
	var reservationID *string
	if err := row.Scan(
		&rec.IdentityKey,
		&rec.Username,
		&rec.LastIssuedAt,
		&rec.LastTxID,
		&reservationID,
		&rec.ReservedAt,
		&rec.PendingTxID,
		&rec.PendingWallet,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if reservationID != nil {
		id, err := uuid.Parse(*reservationID)
		if err != nil {
			return nil, fmt.Errorf("invalid reservation id %q: %w", *reservationID, err)
		}
		rec.ReservationID = &id
	}
	return &rec, nil
}
