package blockchain

import (
	"context"
	"math/big"

	"github.com/bnbbuilders/tbnb-faucet/internal/config"
	"github.com/bnbbuilders/tbnb-faucet/internal/gateways"
	"github.com/bnbbuilders/tbnb-faucet/internal/kms"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/pkg/blockchain/eth"
)

// NewEthClient dials the configured rpc node
func NewEthClient(ctx context.Context, cfg config.Ethereum) (*eth.Client, error) {
	return eth.Dial(ctx, cfg.URL, &eth.ClientConfig{
		ReceiptTimeout:       cfg.ReceiptTimeout,
		MinGasPrice:          big.NewInt(cfg.MinGasPrice),
		MaxGasPrice:          big.NewInt(cfg.MaxGasPrice),
		RPCResponseTimeout:   cfg.RPCResponseTimeout,
		WaitReceiptCycleTime: cfg.WaitReceiptCycleTime,
	})
}

// Payout bundles the executor with the chain id it signs for
type Payout struct {
	Executor *gateways.Payout
	ChainID  *big.Int
}

// NewPayout loads the treasury key and returns a payout executor bound to client
func NewPayout(ctx context.Context, cfg *config.Configuration, client *eth.Client) (*Payout, error) {
	key, err := kms.LoadTreasuryKey(ctx, cfg.Treasury)
	if err != nil {
		return nil, err
	}
	amount, err := cfg.Ethereum.PayoutAmountWei()
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	executor := gateways.NewPayout(client, key, gateways.PayoutConfig{AmountWei: amount, GasLimit: cfg.Ethereum.GasLimit})
	log.Info(ctx, "payout executor ready", "treasury", executor.Treasury().Hex(), "chainID", chainID, "amountWei", amount)
	return &Payout{Executor: executor, ChainID: chainID}, nil
}
