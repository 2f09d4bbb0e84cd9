package service

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ziflex/lecho/v3"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/eth"
)

// fakeLedgerClient implements eth.LedgerClientWrapper for tests. Any
// func field left nil falls back to a happy-path default; submitted
// transactions are recorded for inspection.
type fakeLedgerClient struct {
	mu   sync.Mutex
	sent []*types.Transaction

	nativeBalanceFunc     func(address common.Address) (*big.Int, error)
	tokenBalanceFunc      func(token, holder common.Address) (*big.Int, error)
	chainIDFunc           func() (*big.Int, error)
	suggestGasPriceFunc   func() (*big.Int, error)
	latestBaseFeeFunc     func() (*big.Int, error)
	recentFeeSamplesFunc  func() ([]eth.FeeSample, error)
	estimateGasFunc       func(msg ethereum.CallMsg) (uint64, error)
	sendRawFunc           func(tx *types.Transaction) error
	awaitConfirmationFunc func(txHash common.Hash, minConfirmations uint64) (*types.Receipt, error)
}

func (f *fakeLedgerClient) NativeBalance(_ context.Context, address common.Address) (*big.Int, error) {
	if f.nativeBalanceFunc != nil {
		return f.nativeBalanceFunc(address)
	}
	return big.NewInt(0), nil
}

func (f *fakeLedgerClient) TokenBalance(_ context.Context, token, holder common.Address) (*big.Int, error) {
	if f.tokenBalanceFunc != nil {
		return f.tokenBalanceFunc(token, holder)
	}
	return big.NewInt(0), nil
}

func (f *fakeLedgerClient) ChainID(_ context.Context) (*big.Int, error) {
	if f.chainIDFunc != nil {
		return f.chainIDFunc()
	}
	return big.NewInt(1337), nil
}

func (f *fakeLedgerClient) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if f.suggestGasPriceFunc != nil {
		return f.suggestGasPriceFunc()
	}
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeLedgerClient) LatestBaseFee(_ context.Context) (*big.Int, error) {
	if f.latestBaseFeeFunc != nil {
		return f.latestBaseFeeFunc()
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeLedgerClient) RecentFeeSamples(_ context.Context) ([]eth.FeeSample, error) {
	if f.recentFeeSamplesFunc != nil {
		return f.recentFeeSamplesFunc()
	}
	return []eth.FeeSample{
		{MaxFeePerGas: big.NewInt(3_000_000_000), PriorityFeePerGas: big.NewInt(1_000_000_000)},
	}, nil
}

func (f *fakeLedgerClient) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateGasFunc != nil {
		return f.estimateGasFunc(msg)
	}
	return 21000, nil
}

func (f *fakeLedgerClient) SendRawTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendRawFunc != nil {
		if err := f.sendRawFunc(tx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeLedgerClient) AwaitConfirmation(_ context.Context, txHash common.Hash, minConfirmations uint64) (*types.Receipt, error) {
	if f.awaitConfirmationFunc != nil {
		return f.awaitConfirmationFunc(txHash, minConfirmations)
	}
	return &types.Receipt{
		TxHash:      txHash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(100),
	}, nil
}

func (f *fakeLedgerClient) sentTransactions() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction{}, f.sent...)
}

var _ eth.LedgerClientWrapper = (*fakeLedgerClient)(nil)

const testTreasuryAddress = "0x000000000000000000000000000000000000dEaD"

func testConfig() *Config {
	return &Config{
		TreasuryAddress:         testTreasuryAddress,
		GatewayName:             "test",
		TransactionType:         TransactionTypeLegacy,
		MinConfirmations:        1,
		ConfirmationTimeout:     5,
		InvoiceDelayMillis:      0,
		PollDelayMillis:         1,
		FeeEstimationRetryMax:   2,
		FeeEstimationRetryDelay: 0,
		ReflectorTimeout:        1,
	}
}

func newTestService(t *testing.T, config *Config, store db.InvoiceStore, ledger eth.LedgerClientWrapper, reflector Reflector) *GatewayService {
	t.Helper()
	svc, err := NewGatewayService(config, store, ledger, lecho.New(io.Discard), reflector)
	if err != nil {
		t.Fatalf("could not create gateway service: %v", err)
	}
	return svc
}
