package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// The one fixed ABI fragment the gateway needs from a token contract.
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// TokenBalance queries balanceOf(holder) on an ERC-20 compatible
// contract via a read-only call.
func (w *EthClientWrapper) TokenBalance(ctx context.Context, token common.Address, holder common.Address) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 balanceOf ABI: %w", err)
	}
	calldata, err := parsedABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf calldata: %w", err)
	}
	output, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	results, err := parsedABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: balanceOf returned no value", ErrMalformedResponse)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf returned a non-integer", ErrMalformedResponse)
	}
	return balance, nil
}
