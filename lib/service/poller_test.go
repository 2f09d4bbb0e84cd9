package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/db/models"
)

func storeInvoice(t *testing.T, store db.InvoiceStore, key string, invoice models.Invoice) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), key, invoice))
}

func TestRunPassDeletesExpiredInvoiceSilently(t *testing.T) {
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	svc := newTestService(t, testConfig(), store, &fakeLedgerClient{}, reflector)

	invoice := testInvoice(t, 100)
	invoice.Expires = time.Now().Unix() - 10
	keyBytes := invoice.Wallet.Bytes()
	storeInvoice(t, store, "expired", invoice)

	svc.runPass(context.Background())

	_, err := store.Get(context.Background(), "expired")
	assert.ErrorIs(t, err, db.ErrNotFound)
	// no settlement for an unpaid invoice
	assert.Len(t, reflector.C, 0)
	// the ephemeral key is scrubbed once nothing can reference it
	for _, b := range keyBytes {
		assert.Zero(t, b)
	}
}

func TestRunPassSettlesPaidInvoice(t *testing.T) {
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	ledger := &fakeLedgerClient{
		nativeBalanceFunc: func(common.Address) (*big.Int, error) {
			return big.NewInt(1_000_000_000_000_000_000), nil
		},
	}
	svc := newTestService(t, testConfig(), store, ledger, reflector)
	storeInvoice(t, store, "paid", testInvoice(t, 100))

	svc.runPass(context.Background())

	_, err := store.Get(context.Background(), "paid")
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Len(t, ledger.sentTransactions(), 1)

	require.Len(t, reflector.C, 1)
	settled := <-reflector.C
	assert.Equal(t, "paid", settled.ID)
	assert.Greater(t, settled.Invoice.PaidAtTimestamp, int64(0))
	require.NotNil(t, settled.Invoice.Receipt)
}

func TestRunPassDeliversSettlementEvenWhenSweepFails(t *testing.T) {
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	ledger := &fakeLedgerClient{
		nativeBalanceFunc: func(common.Address) (*big.Int, error) {
			return big.NewInt(1_000_000_000_000_000_000), nil
		},
		sendRawFunc: func(*types.Transaction) error { return errors.New("insufficient funds for gas") },
	}
	svc := newTestService(t, testConfig(), store, ledger, reflector)
	storeInvoice(t, store, "paid", testInvoice(t, 100))

	svc.runPass(context.Background())

	_, err := store.Get(context.Background(), "paid")
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.Len(t, reflector.C, 1)
	settled := <-reflector.C
	assert.Equal(t, "paid", settled.ID)
	assert.Greater(t, settled.Invoice.PaidAtTimestamp, int64(0))
	// no receipt: the sweep never landed, the key in the record is the
	// only way left to reach the funds
	assert.Nil(t, settled.Invoice.Receipt)
	assert.NotEmpty(t, settled.Invoice.Wallet.Bytes())
}

func TestRunPassKeepsInvoiceOnLedgerError(t *testing.T) {
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	ledger := &fakeLedgerClient{
		nativeBalanceFunc: func(common.Address) (*big.Int, error) {
			return nil, errors.New("rpc timeout")
		},
	}
	svc := newTestService(t, testConfig(), store, ledger, reflector)
	storeInvoice(t, store, "flaky", testInvoice(t, 100))

	svc.runPass(context.Background())

	_, err := store.Get(context.Background(), "flaky")
	assert.NoError(t, err)
	assert.Len(t, reflector.C, 0)
}

func TestRunPassKeepsUnderpaidInvoice(t *testing.T) {
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	ledger := &fakeLedgerClient{
		nativeBalanceFunc: func(common.Address) (*big.Int, error) { return big.NewInt(99), nil },
	}
	svc := newTestService(t, testConfig(), store, ledger, reflector)
	storeInvoice(t, store, "partial", testInvoice(t, 100))

	svc.runPass(context.Background())

	_, err := store.Get(context.Background(), "partial")
	assert.NoError(t, err)
	assert.Len(t, reflector.C, 0)
	assert.Len(t, ledger.sentTransactions(), 0)
}

func TestRunPassChecksTokenBalanceForTokenInvoices(t *testing.T) {
	tokenAddress := "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	store := db.NewMemoryStore()
	reflector := NewChannelReflector(1)
	var queriedToken common.Address
	ledger := &fakeLedgerClient{
		tokenBalanceFunc: func(token, holder common.Address) (*big.Int, error) {
			queriedToken = token
			return big.NewInt(500), nil
		},
		nativeBalanceFunc: func(common.Address) (*big.Int, error) {
			// gas balance read by the sweep itself
			return big.NewInt(1_000_000_000_000_000_000), nil
		},
	}
	svc := newTestService(t, testConfig(), store, ledger, reflector)

	invoice := testInvoice(t, 500)
	invoice.Method = models.Token(tokenAddress)
	storeInvoice(t, store, "token", invoice)

	svc.runPass(context.Background())

	assert.Equal(t, common.HexToAddress(tokenAddress), queriedToken)
	require.Len(t, reflector.C, 1)
	settled := <-reflector.C
	assert.Equal(t, "token", settled.ID)
}

func TestStartPollingLoopStopsOnCancel(t *testing.T) {
	svc := newTestService(t, testConfig(), db.NewMemoryStore(), &fakeLedgerClient{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StartPollingLoop(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("polling loop did not stop after cancellation")
	}
}
