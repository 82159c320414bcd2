package ports

import (
	"context"
	"math/big"
)

// TransferStatus is the on-chain state of a previously signed transfer
type TransferStatus int

const (
	// TransferStatusUnknown - the chain has no final answer yet
	TransferStatusUnknown TransferStatus = iota
	// TransferStatusSucceeded - mined with a successful receipt
	TransferStatusSucceeded
	// TransferStatusFailed - mined and reverted
	TransferStatusFailed
	// TransferStatusNotFound - the node doesn't know the transaction
	TransferStatusNotFound
)

// IntentFunc is called with the transaction hash after signing and before broadcasting.
// Returning an error aborts the transfer.
type IntentFunc func(ctx context.Context, txID string) error

// PayoutExecutor moves the configured amount of native token from the treasury
type PayoutExecutor interface {
	// Transfer sends the payout and returns the transaction hash once it is mined successfully.
	// Failures are returned as *domain.ExecutionError.
	Transfer(ctx context.Context, to string, intent IntentFunc) (string, error)
	// TransferStatus looks up a transaction previously reported to an IntentFunc
	TransferStatus(ctx context.Context, txID string) (TransferStatus, error)
	// Amount is the payout amount in wei
	Amount() *big.Int
}
