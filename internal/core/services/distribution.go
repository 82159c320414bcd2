package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// resolveTimeout bounds the commit or release that follows a payout
const resolveTimeout = 30 * time.Second

// reGithubUsername matches GitHub logins: up to 39 alphanumerics or single hyphens, not at the edges
var reGithubUsername = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

type distribution struct {
	verifier    ports.IdentityVerifier
	gate        ports.DistributionGate
	executor    ports.PayoutExecutor
	holdTimeout time.Duration
	now         func() time.Time
}

// NewDistribution returns the service that turns a request into exactly one outcome:
// validate, verify, reserve, pay, then commit or release.
func NewDistribution(verifier ports.IdentityVerifier, gate ports.DistributionGate, executor ports.PayoutExecutor, holdTimeout time.Duration) *distribution {
	return &distribution{
		verifier:    verifier,
		gate:        gate,
		executor:    executor,
		holdTimeout: holdTimeout,
		now:         time.Now,
	}
}

// Issue runs the pipeline for one request. It never returns a partial result.
func (d *distribution) Issue(ctx context.Context, req *domain.DistributionRequest) *domain.DistributionOutcome {
	outcome := &domain.DistributionOutcome{
		RequestID: uuid.New(),
		BuilderID: req.BuilderID,
		Channel:   req.Channel,
	}
	if outcome.BuilderID == "" {
		outcome.BuilderID = newBuilderID()
	}
	if outcome.Channel == "" {
		outcome.Channel = domain.ChannelWeb
	}
	ctx = log.With(ctx, "request", outcome.RequestID, "builder", outcome.BuilderID, "channel", outcome.Channel)

	if err := validateRequest(req); err != nil {
		log.Info(ctx, "request rejected", "err", err)
		return deny(outcome, domain.StatusDeniedInvalidInput, err.Error())
	}
	username := strings.TrimSpace(req.GithubUsername)
	wallet := common.HexToAddress(req.WalletAddress).Hex()

	verdict, err := d.verifier.Verify(ctx, username)
	if err != nil {
		log.Warn(ctx, "identity lookup failed", "username", username, "err", err)
		return deny(outcome, domain.StatusDeniedLookupUnavailable, "GitHub verification is unavailable, try again later")
	}
	outcome.Verdict = verdict
	if !verdict.Verified {
		failure := &domain.VerificationFailure{Reasons: verdict.Reasons}
		log.Info(ctx, "verification denied", "username", username, "reasons", verdict.Reasons)
		return deny(outcome, domain.StatusDeniedVerification, failure.Error())
	}
	ctx = log.With(ctx, "identity", verdict.IdentityKey)

	res, err := d.gate.Reserve(ctx, verdict.IdentityKey, verdict.Username, d.now())
	var cooldown *domain.CooldownActiveError
	if errors.As(err, &cooldown) {
		log.Info(ctx, "cooldown denied", "retryAfter", cooldown.RetryAfter, "inFlight", cooldown.InFlight)
		outcome.RetryAfter = &cooldown.RetryAfter
		return deny(outcome, domain.StatusDeniedCooldown, cooldown.Error())
	}
	if err != nil {
		log.Error(ctx, "cooldown ledger unavailable", "err", err)
		return deny(outcome, domain.StatusFailedExecution, "the faucet could not reach its ledger, try again later")
	}
	res.WalletAddress = wallet

	// From here on the reservation must end committed, released, or left to the
	// reconciler, whatever happens to the caller.
	return d.execute(context.WithoutCancel(ctx), outcome, res, wallet)
}

func (d *distribution) execute(ctx context.Context, outcome *domain.DistributionOutcome, res *domain.Reservation, wallet string) *domain.DistributionOutcome {
	execCtx, cancel := context.WithTimeout(ctx, d.holdTimeout)
	defer cancel()

	txID, err := d.executor.Transfer(execCtx, wallet, func(ctx context.Context, txID string) error {
		return d.gate.MarkSubmitted(ctx, res, txID)
	})

	resolveCtx, cancelResolve := context.WithTimeout(ctx, resolveTimeout)
	defer cancelResolve()

	if err != nil {
		var execErr *domain.ExecutionError
		if errors.As(err, &execErr) && execErr.TxID != "" && errors.Is(err, domain.ErrPayoutUnconfirmed) {
			// broadcast but not confirmed: the reconciler decides once the chain does
			log.Warn(ctx, "payout not confirmed, leaving reservation to the reconciler", "tx", execErr.TxID, "err", err)
			outcome.TxID = &execErr.TxID
			return deny(outcome, domain.StatusFailedExecution, "payout submitted but not confirmed yet, it will be reconciled")
		}
		log.Error(ctx, "payout failed", "err", err)
		if relErr := d.gate.Release(resolveCtx, res); relErr != nil {
			log.Error(ctx, "releasing reservation", "err", relErr)
		}
		return deny(outcome, domain.StatusFailedExecution, "payout failed, you can retry")
	}

	payout := &domain.Payout{
		ID:            outcome.RequestID,
		IdentityKey:   res.IdentityKey,
		Username:      res.Username,
		WalletAddress: wallet,
		TxID:          txID,
		AmountWei:     d.executor.Amount().String(),
		BuilderID:     outcome.BuilderID,
		Channel:       outcome.Channel,
		IssuedAt:      d.now(),
	}
	if err := d.gate.Commit(resolveCtx, res, payout); err != nil {
		// the funds moved; the pending tx on the reservation lets the reconciler finish the record
		log.Error(ctx, "committing payout", "tx", txID, "err", err)
	}
	log.Info(ctx, "payout issued", "tx", txID, "wallet", wallet)

	outcome.Status = domain.StatusIssued
	outcome.TxID = &txID
	outcome.Message = "Disbursement submitted to BSC testnet"
	return outcome
}

func deny(outcome *domain.DistributionOutcome, status domain.DistributionStatus, msg string) *domain.DistributionOutcome {
	outcome.Status = status
	outcome.Message = msg
	return outcome
}

func validateRequest(req *domain.DistributionRequest) error {
	username := strings.TrimSpace(req.GithubUsername)
	if username == "" {
		return &domain.InputError{Field: "github_username", Message: "is required"}
	}
	if !reGithubUsername.MatchString(username) {
		return &domain.InputError{Field: "github_username", Message: "is not a valid GitHub username"}
	}
	if req.WalletAddress == "" {
		return &domain.InputError{Field: "wallet_address", Message: "is required"}
	}
	if !common.IsHexAddress(req.WalletAddress) {
		return &domain.InputError{Field: "wallet_address", Message: "is not a valid address"}
	}
	if common.HexToAddress(req.WalletAddress) == (common.Address{}) {
		return &domain.InputError{Field: "wallet_address", Message: "can't be the zero address"}
	}
	if req.Channel != "" && !req.Channel.Valid() {
		return &domain.InputError{Field: "channel", Message: "must be one of discord, telegram, web"}
	}
	return nil
}

func newBuilderID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return "user-" + hex.EncodeToString(b[:])
}
