package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

const (
	// Eq is for "equal" result of comparison
	Eq = 0
	// Gt is for "greater" than result of comparison
	Gt = 1
	// Lt is for "less than" result of comparison
	Lt = -1

	gasPriceIncrement = 10
)

var (
	// ErrReceiptStatusFailed when receiving a failed transaction
	ErrReceiptStatusFailed = errors.New("receipt status is failed")
	// ErrReceiptNotReceived when unable to retrieve a transaction
	ErrReceiptNotReceived = errors.New("receipt not available")
	// ErrTransactionNotFound transaction doesn't exist on blockchain
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Client is an ethereum client used to move native tokens out of the treasury.
type Client struct {
	client *ethclient.Client
	Config *ClientConfig
}

// ClientConfig eth client config
type ClientConfig struct {
	ReceiptTimeout       time.Duration `json:"receipt_timeout"`
	MinGasPrice          *big.Int      `json:"min_gas_price"`
	MaxGasPrice          *big.Int      `json:"max_gas_price"`
	RPCResponseTimeout   time.Duration `json:"rpc_response_time_out"`
	WaitReceiptCycleTime time.Duration `json:"wait_receipt_cycle_time_out"`
}

// Dial opens a connection to the rpc endpoint and returns a Client
func Dial(ctx context.Context, url string, c *ClientConfig) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed connect to eth node %s: %w", url, err)
	}
	return NewClient(ec, c), nil
}

// NewClient creates a Client instance.
func NewClient(client *ethclient.Client, c *ClientConfig) *Client {
	return &Client{client: client, Config: c}
}

// Close closes the underlying rpc connection
func (c *Client) Close() {
	c.client.Close()
}

// Ping checks the rpc endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ChainID(ctx)
	return err
}

// BalanceAt retrieves the latest balance of the given account
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	return c.client.BalanceAt(_ctx, addr, nil)
}

// PendingNonceAt returns the next nonce to use for the account
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	return c.client.PendingNonceAt(_ctx, addr)
}

// ChainID get chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	cid, err := c.client.ChainID(_ctx)
	if err != nil {
		return nil, err
	}
	return cid, nil
}

// SendRawTx send raw transaction.
func (c *Client) SendRawTx(ctx context.Context, tx *types.Transaction) error {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	return c.client.SendTransaction(_ctx, tx)
}

// GetTransactionReceiptByID get tx receipt by tx id. Returns ErrReceiptNotReceived while
// the transaction is pending or unknown to the node.
func (c *Client) GetTransactionReceiptByID(ctx context.Context, txID string) (*types.Receipt, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	receipt, err := c.client.TransactionReceipt(_ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		log.Debug(ctx, "Pending transaction", "tx", txID)
		return nil, ErrReceiptNotReceived
	}
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ErrReceiptNotReceived
	}
	return receipt, nil
}

// WaitTransactionReceiptByID wait for transaction receipt
func (c *Client) WaitTransactionReceiptByID(ctx context.Context, txID string) (*types.Receipt, error) {
	return c.waitReceipt(ctx, common.HexToHash(txID), c.Config.ReceiptTimeout)
}

// GetTransactionByID return the transaction by ID and whether it is still pending.
// Returns ErrTransactionNotFound if the node does not know the transaction.
func (c *Client) GetTransactionByID(ctx context.Context, txID string) (*types.Transaction, bool, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	tx, pending, err := c.client.TransactionByHash(_ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, ErrTransactionNotFound
	}
	return tx, pending, err
}

// GasPrice returns suggested gas price within configured bounds
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice := new(big.Int)
	zero := big.NewInt(0)

	// if configured min gas price == max gas price and is not zero, then force this value
	if c.Config.MinGasPrice != nil && c.Config.MinGasPrice.Cmp(zero) == Gt &&
		c.Config.MaxGasPrice != nil && c.Config.MinGasPrice.Cmp(c.Config.MaxGasPrice) == Eq {
		return gasPrice.Set(c.Config.MaxGasPrice), nil
	}

	_ctx, cancel := context.WithTimeout(ctx, c.Config.RPCResponseTimeout)
	defer cancel()
	suggestedGasPrice, err := c.client.SuggestGasPrice(_ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested gas price: %w", err)
	}

	// increase suggested gas price by 10% for better confirmation speed
	inc := new(big.Int).Set(suggestedGasPrice)
	inc.Div(inc, new(big.Int).SetUint64(gasPriceIncrement))
	suggestedGasPrice.Add(suggestedGasPrice, inc)

	gasPrice.Set(suggestedGasPrice)

	// correct value if estimated gas price is less than configured min value
	if c.Config.MinGasPrice != nil && c.Config.MinGasPrice.Cmp(zero) == Gt &&
		gasPrice.Cmp(c.Config.MinGasPrice) == Lt {
		gasPrice.Set(c.Config.MinGasPrice)
	}
	// correct value if estimated gas price is more than configured max value
	if c.Config.MaxGasPrice != nil && c.Config.MaxGasPrice.Cmp(zero) == Gt &&
		gasPrice.Cmp(c.Config.MaxGasPrice) == Gt {
		gasPrice.Set(c.Config.MaxGasPrice)
	}

	if gasPrice.Cmp(suggestedGasPrice) != Eq {
		log.Debug(ctx, "Transaction metadata",
			"suggested gas price", suggestedGasPrice,
			"corrected gas price", gasPrice)
	}

	return gasPrice, nil
}

func (c *Client) waitReceipt(ctx context.Context, txID common.Hash, timeout time.Duration) (*types.Receipt, error) {
	log.Debug(ctx, "Waiting for receipt", "tx", txID.Hex())

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.Config.WaitReceiptCycleTime)
	defer tick.Stop()

	for {
		receipt, err := c.GetTransactionReceiptByID(ctx, txID.Hex())
		if err == nil {
			log.Debug(ctx, "Receipt received", "tx", txID.Hex())
			return receipt, nil
		}
		if !errors.Is(err, ErrReceiptNotReceived) && !isTransient(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			log.Debug(ctx, "Pending transaction / Wait receipt timeout", "tx", txID.Hex())
			return nil, ErrReceiptNotReceived
		case <-tick.C:
		}
	}
}

func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout")
}
