package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// fallbackGasLimit is the cost of a plain value transfer, used to draft
// the transaction that gas estimation runs against.
const fallbackGasLimit = uint64(21000)

// SweepToTreasury moves whatever balance sits at a paid invoice's
// address (minus the sweep's own fee) to the treasury. It works off
// the actual on-chain balance, never the invoice's nominal amount, so
// over- and underpayments are captured correctly.
//
// Sweeps are safe to attempt more than once against the same address:
// after a restart mid-sweep, the second attempt sees the drained
// balance, computes a near-zero value and either no-ops or fails
// harmlessly on the reused nonce.
func (svc *GatewayService) SweepToTreasury(ctx context.Context, invoice *models.Invoice) (*types.Receipt, error) {
	// A key that does not parse means the stored record is corrupt.
	// Hard error, never a panic.
	key, err := crypto.ToECDSA(invoice.Wallet.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: malformed invoice wallet key: %v", ErrTransactionBuildFailed, err)
	}

	chainID, err := svc.LedgerClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainIDUnavailable, err)
	}

	from := common.HexToAddress(invoice.To)
	balance, err := svc.LedgerClient.NativeBalance(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read invoice balance: %v", ErrTransactionBuildFailed, err)
	}

	switch svc.Config.TransactionType {
	case TransactionTypeDynamic:
		return svc.sweepDynamic(ctx, from, key, chainID, balance)
	default:
		return svc.sweepLegacy(ctx, from, key, chainID, balance)
	}
}

func (svc *GatewayService) sweepLegacy(ctx context.Context, from common.Address, key *ecdsa.PrivateKey, chainID *big.Int, balance *big.Int) (*types.Receipt, error) {
	gasPrice, err := svc.LedgerClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not get gas price: %v", ErrTransactionBuildFailed, err)
	}

	gasLimit := svc.Config.TransferGasLimit
	if gasLimit == 0 {
		draftCost := new(big.Int).Mul(new(big.Int).SetUint64(fallbackGasLimit), gasPrice)
		draft := ethereum.CallMsg{
			From:     from,
			To:       &svc.treasuryAddress,
			GasPrice: gasPrice,
			Value:    saturatingSub(balance, draftCost),
		}
		gasLimit, err = svc.LedgerClient.EstimateGas(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("%w: gas estimation failed: %v", ErrTransactionBuildFailed, err)
		}
	}

	maxCost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0, // first and only outgoing transaction of the ephemeral address
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &svc.treasuryAddress,
		Value:    saturatingSub(balance, maxCost),
	})
	return svc.signAndSubmit(ctx, tx, chainID, key)
}

func (svc *GatewayService) sweepDynamic(ctx context.Context, from common.Address, key *ecdsa.PrivateKey, chainID *big.Int, balance *big.Int) (*types.Receipt, error) {
	maxFeePerGas, priorityFeePerGas, err := svc.estimateDynamicFees(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := svc.Config.TransferGasLimit
	if gasLimit == 0 {
		draft := ethereum.CallMsg{
			From:      from,
			To:        &svc.treasuryAddress,
			GasFeeCap: maxFeePerGas,
			GasTipCap: priorityFeePerGas,
		}
		gasLimit, err = svc.LedgerClient.EstimateGas(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("%w: gas estimation failed: %v", ErrTransactionBuildFailed, err)
		}
	}

	maxTotalFee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), maxFeePerGas)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0, // first and only outgoing transaction of the ephemeral address
		GasTipCap: priorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        &svc.treasuryAddress,
		Value:     saturatingSub(balance, maxTotalFee),
	})
	return svc.signAndSubmit(ctx, tx, chainID, key)
}

func (svc *GatewayService) signAndSubmit(ctx context.Context, tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Receipt, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("%w: signing failed: %v", ErrTransactionBuildFailed, err)
	}

	if err := svc.LedgerClient.SendRawTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, time.Duration(svc.Config.ConfirmationTimeout)*time.Second)
	defer cancel()
	receipt, err := svc.LedgerClient.AwaitConfirmation(confirmCtx, signed.Hash(), svc.Config.MinConfirmations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionNotConfirmed, err)
	}
	svc.Logger.Infof("Sweep confirmed: gateway %s tx %s", svc.Config.GatewayName, signed.Hash().Hex())
	return receipt, nil
}

// saturatingSub returns a-b, clamped at zero. A sweep must never try
// to move a negative value when the fee reserve exceeds the balance.
func saturatingSub(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}
