package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ziflex/lecho/v3"
)

const defaultReceiptPollInterval = 3 * time.Second

// EthClientWrapper implements LedgerClientWrapper on top of a
// go-ethereum client.
type EthClientWrapper struct {
	client *ethclient.Client
	Logger *lecho.Logger

	// ReceiptPollInterval controls how often AwaitConfirmation asks the
	// node for the receipt and the current head.
	ReceiptPollInterval time.Duration
}

func NewEthClientWrapper(client *ethclient.Client, logger *lecho.Logger) *EthClientWrapper {
	return &EthClientWrapper{
		client:              client,
		Logger:              logger,
		ReceiptPollInterval: defaultReceiptPollInterval,
	}
}

// Dial connects to an EVM JSON-RPC endpoint and wraps the client.
func Dial(ctx context.Context, rpcURL string, logger *lecho.Logger) (*EthClientWrapper, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return NewEthClientWrapper(client, logger), nil
}

func (w *EthClientWrapper) NativeBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := w.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return balance, nil
}

func (w *EthClientWrapper) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return chainID, nil
}

func (w *EthClientWrapper) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return gasPrice, nil
}

func (w *EthClientWrapper) LatestBaseFee(ctx context.Context) (*big.Int, error) {
	header, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	if header.BaseFee == nil {
		return nil, ErrNoBaseFee
	}
	return header.BaseFee, nil
}

// RecentFeeSamples collects the fee caps of every fee-market
// transaction in the latest block. Legacy transactions are skipped:
// their gas price says nothing about tips.
func (w *EthClientWrapper) RecentFeeSamples(ctx context.Context) ([]FeeSample, error) {
	block, err := w.client.BlockByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	samples := []FeeSample{}
	for _, tx := range block.Transactions() {
		if tx.Type() != types.DynamicFeeTxType {
			continue
		}
		samples = append(samples, FeeSample{
			MaxFeePerGas:      tx.GasFeeCap(),
			PriorityFeePerGas: tx.GasTipCap(),
		})
	}
	return samples, nil
}

func (w *EthClientWrapper) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := w.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return gas, nil
}

func (w *EthClientWrapper) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := w.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	return nil
}

// AwaitConfirmation polls for the receipt and counts confirmations
// against the current head. It returns ctx's error when the wait
// window closes first.
func (w *EthClientWrapper) AwaitConfirmation(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*types.Receipt, error) {
	if minConfirmations == 0 {
		minConfirmations = 1
	}
	ticker := time.NewTicker(w.ReceiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := w.client.TransactionReceipt(ctx, txHash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// not mined yet
		case err != nil:
			w.Logger.Debugf("Receipt lookup failed, will retry: tx %s error %v", txHash.Hex(), err)
		case receipt.BlockNumber != nil:
			head, err := w.client.BlockNumber(ctx)
			if err != nil {
				w.Logger.Debugf("Head lookup failed, will retry: error %v", err)
				break
			}
			if head+1 >= receipt.BlockNumber.Uint64()+minConfirmations {
				return receipt, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ LedgerClientWrapper = (*EthClientWrapper)(nil)
