package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/db/models"
	"github.com/acceptevm/acceptevm.go/lib/security"
)

// NewInvoice issues a fresh ephemeral wallet, builds an invoice around
// it and stores it under a key derived from the wallet address and the
// creation time. The key is unique with overwhelming probability;
// collisions are not checked against the store.
func (svc *GatewayService) NewInvoice(ctx context.Context, amount *big.Int, method models.PaymentMethod, message []byte, expiresInSeconds int64) (string, models.Invoice, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", models.Invoice{}, fmt.Errorf("invoice amount must be positive")
	}
	if !method.IsNative() && !common.IsHexAddress(method.TokenAddress) {
		return "", models.Invoice{}, fmt.Errorf("invalid token address %s", method.TokenAddress)
	}

	address, wallet, err := security.IssueWallet()
	if err != nil {
		return "", models.Invoice{}, err
	}
	invoice := models.Invoice{
		To:      address,
		Wallet:  wallet,
		Amount:  amount,
		Method:  method,
		Message: message,
		Expires: time.Now().Unix() + expiresInSeconds,
	}

	invoiceID := invoiceKey(address, time.Now().UnixMilli())
	if err := svc.Store.Set(ctx, invoiceID, invoice); err != nil {
		return "", models.Invoice{}, err
	}
	svc.Logger.Infof("Created invoice: gateway %s id %s to %s amount %s", svc.Config.GatewayName, invoiceID, address, amount.String())
	return invoiceID, invoice, nil
}

// GetInvoice retrieves a single invoice by id.
func (svc *GatewayService) GetInvoice(ctx context.Context, invoiceID string) (models.Invoice, error) {
	return svc.Store.Get(ctx, invoiceID)
}

// GetAllInvoices retrieves every pending invoice in insertion order.
func (svc *GatewayService) GetAllInvoices(ctx context.Context) ([]db.InvoiceEntry, error) {
	return svc.Store.GetAll(ctx)
}

// GetLastInvoice retrieves the most recently created pending invoice.
func (svc *GatewayService) GetLastInvoice(ctx context.Context) (db.InvoiceEntry, error) {
	return svc.Store.GetLatest(ctx)
}

func invoiceKey(address string, millis int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d", address, millis)))
	return hex.EncodeToString(sum[:])
}
