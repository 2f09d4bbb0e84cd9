package eth

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrLedgerUnreachable : the JSON-RPC node could not be reached or
	// rejected the call at the transport level.
	ErrLedgerUnreachable = errors.New("could not reach ledger node")
	// ErrMalformedResponse : the node answered with data the gateway
	// could not interpret.
	ErrMalformedResponse = errors.New("malformed ledger response")
	// ErrNoBaseFee : the latest block carries no base fee, so the chain
	// (or this block) does not support fee-market pricing yet.
	ErrNoBaseFee = errors.New("no base fee in latest block")
	// ErrNoFeeSamples : the latest block contains no fee-market
	// transactions to derive an estimate from.
	ErrNoFeeSamples = errors.New("no fee-market transactions in latest block")
)

// FeeSample is one fee-market transaction's pricing observed on chain,
// used to estimate fees for a sweep.
type FeeSample struct {
	MaxFeePerGas      *big.Int
	PriorityFeePerGas *big.Int
}

// LedgerClientWrapper is the boundary between the gateway and the EVM
// node. Everything the reconciliation loop and the transfer engine
// need from the chain goes through here, so tests can substitute a
// fake and deployments can wrap the client with retries or metrics.
type LedgerClientWrapper interface {
	NativeBalance(ctx context.Context, address common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address, holder common.Address) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	LatestBaseFee(ctx context.Context) (*big.Int, error)
	RecentFeeSamples(ctx context.Context) ([]FeeSample, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendRawTransaction(ctx context.Context, tx *types.Transaction) error
	// AwaitConfirmation blocks until the transaction has at least
	// minConfirmations confirmations or ctx expires.
	AwaitConfirmation(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*types.Receipt, error)
}
