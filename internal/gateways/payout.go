package gateways

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/pkg/blockchain/eth"
)

// ErrInsufficientTreasury is returned when the treasury can't cover the payout plus gas
var ErrInsufficientTreasury = errors.New("insufficient treasury balance")

// ETHClient defines interface for ethereum client
type ETHClient interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	SendRawTx(ctx context.Context, tx *types.Transaction) error
	GetTransactionReceiptByID(ctx context.Context, txID string) (*types.Receipt, error)
	WaitTransactionReceiptByID(ctx context.Context, txID string) (*types.Receipt, error)
	GetTransactionByID(ctx context.Context, txID string) (*types.Transaction, bool, error)
}

// PayoutConfig holds the payout amount in wei and the gas limit of a plain transfer
type PayoutConfig struct {
	AmountWei *big.Int
	GasLimit  uint64
}

// Payout sends native coin transfers from the treasury
type Payout struct {
	client   ETHClient
	key      *ecdsa.PrivateKey
	treasury common.Address
	amount   *big.Int
	gasLimit uint64

	// mu is held from nonce assignment until the node has the transaction.
	// next is the nonce after the last transfer this process broadcast, 0 when it must be
	// read from the pending pool again.
	mu   sync.Mutex
	next uint64
}

// NewPayout returns an executor that sends native coin transfers signed with the treasury key
func NewPayout(client ETHClient, key *ecdsa.PrivateKey, cfg PayoutConfig) *Payout {
	return &Payout{
		client:   client,
		key:      key,
		treasury: crypto.PubkeyToAddress(key.PublicKey),
		amount:   new(big.Int).Set(cfg.AmountWei),
		gasLimit: cfg.GasLimit,
	}
}

// Treasury is the address payouts are sent from
func (p *Payout) Treasury() common.Address {
	return p.treasury
}

// Amount is the payout amount in wei
func (p *Payout) Amount() *big.Int {
	return new(big.Int).Set(p.amount)
}

// Transfer signs a transfer of Amount to the given address, reports its hash to intent,
// broadcasts it and waits for the receipt.
// The returned *domain.ExecutionError wraps domain.ErrPayoutUnconfirmed when the transfer
// may have reached the chain but its outcome is not known.
func (p *Payout) Transfer(ctx context.Context, to string, intent ports.IntentFunc) (string, error) {
	if !common.IsHexAddress(to) {
		return "", &domain.ExecutionError{Cause: fmt.Errorf("invalid recipient %q", to)}
	}
	signed, err := p.submit(ctx, common.HexToAddress(to), intent)
	if err != nil {
		return "", err
	}
	txID := signed.Hash().Hex()
	ctx = log.With(ctx, "tx", txID)
	log.Info(ctx, "payout broadcast", "to", to, "amount", p.amount, "nonce", signed.Nonce())

	receipt, err := p.client.WaitTransactionReceiptByID(ctx, txID)
	if err != nil {
		return "", &domain.ExecutionError{TxID: txID, Cause: fmt.Errorf("%w: %v", domain.ErrPayoutUnconfirmed, err)}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", &domain.ExecutionError{TxID: txID, Cause: eth.ErrReceiptStatusFailed}
	}
	return txID, nil
}

// submit signs, records and broadcasts one transfer. Concurrent transfers go through it one
// at a time so each gets its own nonce.
func (p *Payout) submit(ctx context.Context, to common.Address, intent ports.IntentFunc) (*types.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	signed, err := p.sign(ctx, to)
	if err != nil {
		return nil, &domain.ExecutionError{Cause: err}
	}
	txID := signed.Hash().Hex()

	if err := intent(ctx, txID); err != nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("recording payout intent: %w", err)}
	}

	if err := p.client.SendRawTx(ctx, signed); err != nil && !alreadyKnown(err) {
		p.next = 0
		if mayHaveBeenSent(ctx, err) {
			return nil, &domain.ExecutionError{TxID: txID, Cause: fmt.Errorf("%w: broadcast: %v", domain.ErrPayoutUnconfirmed, err)}
		}
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("broadcast: %w", err)}
	}
	p.next = signed.Nonce() + 1
	return signed, nil
}

// sign must be called with mu held
func (p *Payout) sign(ctx context.Context, to common.Address) (*types.Transaction, error) {
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	gasPrice, err := p.client.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := p.client.BalanceAt(ctx, p.treasury)
	if err != nil {
		return nil, fmt.Errorf("treasury balance: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(p.gasLimit))
	cost.Add(cost, p.amount)
	if balance.Cmp(cost) < 0 {
		log.Error(ctx, "treasury can't fund payout", "treasury", p.treasury.Hex(), "balance", balance, "required", cost)
		return nil, ErrInsufficientTreasury
	}
	nonce, err := p.client.PendingNonceAt(ctx, p.treasury)
	if err != nil {
		return nil, fmt.Errorf("treasury nonce: %w", err)
	}
	// the pending pool of a load balanced rpc may not have seen our last broadcast yet
	if p.next > nonce {
		nonce = p.next
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      p.gasLimit,
		To:       &to,
		Value:    new(big.Int).Set(p.amount),
	})
	return types.SignTx(tx, types.NewEIP155Signer(chainID), p.key)
}

// TransferStatus tells what the chain knows about a transfer reported to an intent
func (p *Payout) TransferStatus(ctx context.Context, txID string) (ports.TransferStatus, error) {
	receipt, err := p.client.GetTransactionReceiptByID(ctx, txID)
	if err == nil {
		if receipt.Status == types.ReceiptStatusSuccessful {
			return ports.TransferStatusSucceeded, nil
		}
		return ports.TransferStatusFailed, nil
	}
	if !errors.Is(err, eth.ErrReceiptNotReceived) {
		return ports.TransferStatusUnknown, err
	}

	_, _, err = p.client.GetTransactionByID(ctx, txID)
	switch {
	case errors.Is(err, eth.ErrTransactionNotFound):
		return ports.TransferStatusNotFound, nil
	case err != nil:
		return ports.TransferStatusUnknown, err
	}
	return ports.TransferStatusUnknown, nil
}

func alreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}

// mayHaveBeenSent is true when the node might have accepted the transaction before the call failed
func mayHaveBeenSent(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof")
}
