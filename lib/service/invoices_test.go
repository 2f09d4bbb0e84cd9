package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/db/models"
)

func TestNewInvoice(t *testing.T) {
	store := db.NewMemoryStore()
	svc := newTestService(t, testConfig(), store, &fakeLedgerClient{}, nil)

	invoiceID, invoice, err := svc.NewInvoice(context.Background(), big.NewInt(1000), models.Native(), []byte("order #42"), 3600)
	require.NoError(t, err)

	assert.Len(t, invoiceID, 64) // hex encoded sha256
	assert.True(t, common.IsHexAddress(invoice.To))
	assert.Equal(t, big.NewInt(1000), invoice.Amount)
	assert.Equal(t, []byte("order #42"), invoice.Message)
	assert.Zero(t, invoice.PaidAtTimestamp)
	assert.Nil(t, invoice.Receipt)
	assert.Greater(t, invoice.Expires, time.Now().Unix())
	assert.NotEmpty(t, invoice.Wallet.Bytes())

	stored, err := svc.GetInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.Equal(t, invoice.To, stored.To)
}

func TestNewInvoiceRejectsBadAmount(t *testing.T) {
	svc := newTestService(t, testConfig(), db.NewMemoryStore(), &fakeLedgerClient{}, nil)

	_, _, err := svc.NewInvoice(context.Background(), nil, models.Native(), nil, 3600)
	assert.Error(t, err)
	_, _, err = svc.NewInvoice(context.Background(), big.NewInt(0), models.Native(), nil, 3600)
	assert.Error(t, err)
	_, _, err = svc.NewInvoice(context.Background(), big.NewInt(-5), models.Native(), nil, 3600)
	assert.Error(t, err)
}

func TestNewInvoiceRejectsMalformedTokenAddress(t *testing.T) {
	svc := newTestService(t, testConfig(), db.NewMemoryStore(), &fakeLedgerClient{}, nil)

	_, _, err := svc.NewInvoice(context.Background(), big.NewInt(100), models.Token("not-an-address"), nil, 3600)
	assert.Error(t, err)
}

func TestNewInvoiceMintsFreshWallets(t *testing.T) {
	svc := newTestService(t, testConfig(), db.NewMemoryStore(), &fakeLedgerClient{}, nil)

	firstID, first, err := svc.NewInvoice(context.Background(), big.NewInt(1), models.Native(), nil, 3600)
	require.NoError(t, err)
	secondID, second, err := svc.NewInvoice(context.Background(), big.NewInt(1), models.Native(), nil, 3600)
	require.NoError(t, err)

	assert.NotEqual(t, firstID, secondID)
	assert.NotEqual(t, first.To, second.To)
	assert.NotEqual(t, first.Wallet.Bytes(), second.Wallet.Bytes())
}

func TestGetLastInvoice(t *testing.T) {
	svc := newTestService(t, testConfig(), db.NewMemoryStore(), &fakeLedgerClient{}, nil)

	_, _, err := svc.NewInvoice(context.Background(), big.NewInt(1), models.Native(), nil, 3600)
	require.NoError(t, err)
	secondID, _, err := svc.NewInvoice(context.Background(), big.NewInt(2), models.Native(), nil, 3600)
	require.NoError(t, err)

	latest, err := svc.GetLastInvoice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secondID, latest.Key)

	all, err := svc.GetAllInvoices(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
