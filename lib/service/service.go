package service

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ziflex/lecho/v3"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/eth"
)

var (
	// ErrChainIDUnavailable : the chain id could not be read, so the
	// sweep cannot be signed replay-safely.
	ErrChainIDUnavailable = errors.New("could not get chain id")
	// ErrFeeEstimationExhausted : fee-market estimation kept failing
	// until the retry budget ran out.
	ErrFeeEstimationExhausted = errors.New("fee estimation retries exhausted")
	// ErrTransactionBuildFailed : the sweep transaction could not be
	// assembled (bad key material, unreadable balance, gas estimation).
	ErrTransactionBuildFailed = errors.New("could not build sweep transaction")
	// ErrSubmissionFailed : the signed sweep was rejected by the node.
	ErrSubmissionFailed = errors.New("could not submit sweep transaction")
	// ErrTransactionNotConfirmed : the sweep was submitted but did not
	// confirm within the wait window.
	ErrTransactionNotConfirmed = errors.New("sweep transaction not confirmed")
)

// GatewayService ties the store, the ledger client and the reflector
// together. It is the facade the host process talks to: create and
// fetch invoices, and run the reconciliation loop.
type GatewayService struct {
	Config       *Config
	Store        db.InvoiceStore
	LedgerClient eth.LedgerClientWrapper
	Logger       *lecho.Logger
	Reflector    Reflector

	treasuryAddress common.Address
}

func NewGatewayService(config *Config, store db.InvoiceStore, ledgerClient eth.LedgerClientWrapper, logger *lecho.Logger, reflector Reflector) (*GatewayService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(config.TreasuryAddress) {
		return nil, fmt.Errorf("invalid treasury address %s", config.TreasuryAddress)
	}
	return &GatewayService{
		Config:          config,
		Store:           store,
		LedgerClient:    ledgerClient,
		Logger:          logger,
		Reflector:       reflector,
		treasuryAddress: common.HexToAddress(config.TreasuryAddress),
	}, nil
}
