package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/db/models"
)

// StartPollingLoop runs reconciliation passes until the host cancels
// the context. One pass visits every stored invoice in store order,
// one invoice at a time; ledger queries are never overlapped so the
// RPC provider sees a bounded request rate and every invoice gets at
// most one sweep attempt per lifetime.
func (svc *GatewayService) StartPollingLoop(ctx context.Context) error {
	svc.Logger.Infof("Starting payment polling loop: gateway %s", svc.Config.GatewayName)
	for {
		svc.runPass(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(svc.Config.PollDelayMillis) * time.Millisecond):
		}
	}
}

// runPass reconciles every stored invoice once. Store and ledger
// errors are logged and leave the affected invoice for the next pass;
// they never abort the loop.
func (svc *GatewayService) runPass(ctx context.Context) {
	entries, err := svc.Store.GetAll(ctx)
	if err != nil {
		svc.Logger.Errorf("Could not list invoices, skipping pass: %v", err)
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		svc.reconcileInvoice(ctx, entry)
		// Sleep after every invoice to stay under RPC rate limits.
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(svc.Config.InvoiceDelayMillis) * time.Millisecond):
		}
	}
}

func (svc *GatewayService) reconcileInvoice(ctx context.Context, entry db.InvoiceEntry) {
	invoice := entry.Invoice

	if time.Now().Unix() > invoice.Expires {
		svc.deleteInvoice(ctx, entry.Key)
		// Nobody will ever see this record again; scrub the key now.
		invoice.Wallet.Wipe()
		svc.Logger.Infof("Invoice expired unpaid: gateway %s id %s", svc.Config.GatewayName, entry.Key)
		return
	}

	paid, err := svc.checkPaid(ctx, invoice)
	if err != nil {
		svc.Logger.Errorf("Could not check invoice balance, will retry next pass: id %s error %v", entry.Key, err)
		return
	}
	if !paid {
		return
	}

	detectedAt := time.Now().Unix()
	receipt, err := svc.SweepToTreasury(ctx, &invoice)
	if err != nil {
		// Terminal for this invoice: it is still deleted and delivered
		// without a receipt. The record in the notification carries the
		// ephemeral key, which is the caller's last chance to recover
		// the funds manually.
		svc.Logger.Errorf("Could not sweep paid invoice to treasury: id %s error %v", entry.Key, err)
		sentry.CaptureException(fmt.Errorf("sweep failed for invoice %s: %w", entry.Key, err))
	} else {
		invoice.Receipt = receipt
	}

	svc.deleteInvoice(ctx, entry.Key)
	invoice.PaidAtTimestamp = detectedAt
	svc.reflect(ctx, models.SettledInvoice{ID: entry.Key, Invoice: invoice})
}

// checkPaid reports whether the invoice address holds at least the
// requested amount, dispatching on the payment method.
func (svc *GatewayService) checkPaid(ctx context.Context, invoice models.Invoice) (bool, error) {
	holder := common.HexToAddress(invoice.To)

	var balance *big.Int
	var err error
	if invoice.Method.IsNative() {
		balance, err = svc.LedgerClient.NativeBalance(ctx, holder)
	} else {
		balance, err = svc.LedgerClient.TokenBalance(ctx, common.HexToAddress(invoice.Method.TokenAddress), holder)
	}
	if err != nil {
		return false, err
	}
	return balance.Cmp(invoice.Amount) >= 0, nil
}

func (svc *GatewayService) deleteInvoice(ctx context.Context, key string) {
	err := svc.Store.Delete(ctx, key)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		svc.Logger.Errorf("Could not remove invoice from store: id %s error %v", key, err)
	}
}

// reflect delivers a settled invoice with a bounded enqueue wait.
// Failures are logged, never retried, and never block the loop.
func (svc *GatewayService) reflect(ctx context.Context, settled models.SettledInvoice) {
	if svc.Reflector == nil {
		return
	}
	reflectCtx, cancel := context.WithTimeout(ctx, time.Duration(svc.Config.ReflectorTimeout)*time.Second)
	defer cancel()
	if err := svc.Reflector.ReflectSettled(reflectCtx, settled); err != nil {
		svc.Logger.Errorf("Could not deliver settled invoice: id %s error %v", settled.ID, err)
	}
}
