package gateways

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/pkg/blockchain/eth"
)

const recipient = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

var (
	chainID   = big.NewInt(97)
	gasPrice  = big.NewInt(10_000_000_000)
	payoutWei = big.NewInt(300_000_000_000_000_000)
)

type fakeChain struct {
	mu       sync.Mutex
	balance  *big.Int
	nonce    uint64
	pool     *uint64 // pending nonce reported by a node that lags behind the broadcasts
	sent     []*types.Transaction
	sendErr  error
	waitErr  error
	status   uint64
	receipts map[string]*types.Receipt
	known    map[string]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balance:  big.NewInt(0).Mul(payoutWei, big.NewInt(10)),
		nonce:    7,
		status:   types.ReceiptStatusSuccessful,
		receipts: map[string]*types.Receipt{},
		known:    map[string]bool{},
	}
}

func (f *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pool != nil {
		return *f.pool, nil
	}
	return f.nonce, nil
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return chainID, nil }

func (f *fakeChain) GasPrice(context.Context) (*big.Int, error) { return gasPrice, nil }

func (f *fakeChain) SendRawTx(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	f.known[tx.Hash().Hex()] = true
	return nil
}

func (f *fakeChain) GetTransactionReceiptByID(_ context.Context, txID string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[txID]; ok {
		return r, nil
	}
	return nil, eth.ErrReceiptNotReceived
}

func (f *fakeChain) WaitTransactionReceiptByID(_ context.Context, txID string) (*types.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	r := &types.Receipt{Status: f.status, TxHash: common.HexToHash(txID)}
	f.mu.Lock()
	f.receipts[txID] = r
	f.mu.Unlock()
	return r, nil
}

func (f *fakeChain) GetTransactionByID(_ context.Context, txID string) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known[txID] {
		return nil, true, nil
	}
	return nil, false, eth.ErrTransactionNotFound
}

func newTestPayout(t *testing.T, chain *fakeChain) *Payout {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewPayout(chain, key, PayoutConfig{AmountWei: payoutWei, GasLimit: 21000})
}

func recordIntent(ids *[]string) ports.IntentFunc {
	return func(_ context.Context, txID string) error {
		*ids = append(*ids, txID)
		return nil
	}
}

func TestPayout_Transfer(t *testing.T) {
	chain := newFakeChain()
	p := newTestPayout(t, chain)
	var intents []string

	txID, err := p.Transfer(context.Background(), recipient, recordIntent(&intents))
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)
	assert.Equal(t, []string{txID}, intents, "intent is recorded before broadcast with the same hash")

	tx := chain.sent[0]
	assert.Equal(t, txID, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, 0, tx.GasPrice().Cmp(gasPrice))
	assert.Equal(t, 0, tx.Value().Cmp(payoutWei))
	assert.Equal(t, common.HexToAddress(recipient), *tx.To())
	sender, err := types.Sender(types.NewEIP155Signer(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, p.Treasury(), sender)

	status, err := p.TransferStatus(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, ports.TransferStatusSucceeded, status)

	assert.Equal(t, 0, p.Amount().Cmp(payoutWei))
	p.Amount().SetInt64(0)
	assert.Equal(t, 0, p.Amount().Cmp(payoutWei), "amount can't be modified by callers")
}

func TestPayout_TransferFailures(t *testing.T) {
	t.Run("insufficient treasury", func(t *testing.T) {
		chain := newFakeChain()
		chain.balance = new(big.Int).Set(payoutWei)
		var intents []string
		_, err := newTestPayout(t, chain).Transfer(context.Background(), recipient, recordIntent(&intents))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.ErrorIs(t, err, ErrInsufficientTreasury)
		assert.Empty(t, execErr.TxID)
		assert.Empty(t, intents)
		assert.Empty(t, chain.sent)
	})

	t.Run("intent not recorded", func(t *testing.T) {
		chain := newFakeChain()
		_, err := newTestPayout(t, chain).Transfer(context.Background(), recipient, func(context.Context, string) error {
			return errors.New("db down")
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrPayoutUnconfirmed)
		assert.Empty(t, chain.sent, "nothing is broadcast without a recorded intent")
	})

	t.Run("rejected by node", func(t *testing.T) {
		chain := newFakeChain()
		chain.sendErr = errors.New("nonce too low")
		var intents []string
		_, err := newTestPayout(t, chain).Transfer(context.Background(), recipient, recordIntent(&intents))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Empty(t, execErr.TxID)
		assert.NotErrorIs(t, err, domain.ErrPayoutUnconfirmed)
	})

	t.Run("broadcast timeout", func(t *testing.T) {
		chain := newFakeChain()
		chain.sendErr = context.DeadlineExceeded
		var intents []string
		_, err := newTestPayout(t, chain).Transfer(context.Background(), recipient, recordIntent(&intents))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, intents[0], execErr.TxID)
		assert.ErrorIs(t, err, domain.ErrPayoutUnconfirmed)
	})

	t.Run("receipt timeout", func(t *testing.T) {
		chain := newFakeChain()
		chain.waitErr = eth.ErrReceiptNotReceived
		var intents []string
		_, err := newTestPayout(t, chain).Transfer(context.Background(), recipient, recordIntent(&intents))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, intents[0], execErr.TxID)
		assert.ErrorIs(t, err, domain.ErrPayoutUnconfirmed)
	})

	t.Run("reverted", func(t *testing.T) {
		chain := newFakeChain()
		chain.status = types.ReceiptStatusFailed
		p := newTestPayout(t, chain)
		var intents []string
		_, err := p.Transfer(context.Background(), recipient, recordIntent(&intents))
		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.ErrorIs(t, err, eth.ErrReceiptStatusFailed)
		assert.NotErrorIs(t, err, domain.ErrPayoutUnconfirmed)

		status, err := p.TransferStatus(context.Background(), execErr.TxID)
		require.NoError(t, err)
		assert.Equal(t, ports.TransferStatusFailed, status)
	})
}

func TestPayout_TransferStatus(t *testing.T) {
	chain := newFakeChain()
	p := newTestPayout(t, chain)
	ctx := context.Background()

	status, err := p.TransferStatus(ctx, "0x01")
	require.NoError(t, err)
	assert.Equal(t, ports.TransferStatusNotFound, status)

	chain.known["0x02"] = true
	status, err = p.TransferStatus(ctx, "0x02")
	require.NoError(t, err)
	assert.Equal(t, ports.TransferStatusUnknown, status)
}

func TestPayout_ConcurrentTransfers(t *testing.T) {
	const transfers = 8
	lagging := uint64(7)

	for _, tc := range []struct {
		name      string
		pool      *uint64
		recipient func(i int) string
	}{
		{name: "different recipients", recipient: func(i int) string { return common.BigToAddress(big.NewInt(int64(1000 + i))).Hex() }},
		{name: "same recipient", recipient: func(int) string { return recipient }},
		{name: "lagging pending pool", pool: &lagging, recipient: func(int) string { return recipient }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.pool = tc.pool
			p := newTestPayout(t, chain)

			var mu sync.Mutex
			intents := make(map[string]bool)
			intent := func(_ context.Context, txID string) error {
				time.Sleep(time.Millisecond)
				mu.Lock()
				defer mu.Unlock()
				intents[txID] = true
				return nil
			}

			var wg sync.WaitGroup
			txIDs := make([]string, transfers)
			errs := make([]error, transfers)
			for i := 0; i < transfers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					txIDs[i], errs[i] = p.Transfer(context.Background(), tc.recipient(i), intent)
				}(i)
			}
			wg.Wait()

			for i := range errs {
				require.NoError(t, errs[i])
			}
			require.Len(t, chain.sent, transfers)
			nonces := make(map[uint64]bool)
			hashes := make(map[string]bool)
			for _, tx := range chain.sent {
				nonces[tx.Nonce()] = true
				hashes[tx.Hash().Hex()] = true
			}
			for i := 0; i < transfers; i++ {
				assert.True(t, nonces[uint64(7+i)], "nonce %d not used", 7+i)
				assert.True(t, hashes[txIDs[i]])
			}
			assert.Len(t, hashes, transfers, "every transfer is a distinct transaction")
			assert.Len(t, intents, transfers)
		})
	}
}

func TestPayout_NonceResyncAfterRejectedBroadcast(t *testing.T) {
	chain := newFakeChain()
	pool := uint64(7)
	chain.pool = &pool
	p := newTestPayout(t, chain)
	ctx := context.Background()
	var intents []string

	_, err := p.Transfer(ctx, recipient, recordIntent(&intents))
	require.NoError(t, err)
	_, err = p.Transfer(ctx, recipient, recordIntent(&intents))
	require.NoError(t, err)
	require.Len(t, chain.sent, 2)
	assert.Equal(t, uint64(8), chain.sent[1].Nonce(), "local nonce runs ahead of a lagging pool")

	chain.sendErr = errors.New("nonce too low")
	_, err = p.Transfer(ctx, recipient, recordIntent(&intents))
	require.Error(t, err)

	// the node dropped nonce 8
	chain.sendErr = nil
	pool = 8
	_, err = p.Transfer(ctx, recipient, recordIntent(&intents))
	require.NoError(t, err)
	require.Len(t, chain.sent, 3)
	assert.Equal(t, uint64(8), chain.sent[2].Nonce(), "nonce is read from the pool again after a rejected broadcast")
}
