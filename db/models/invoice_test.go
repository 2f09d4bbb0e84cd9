package models

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceptevm/acceptevm.go/lib/security"
)

func TestInvoiceSerializeRoundTrip(t *testing.T) {
	invoice := Invoice{
		To:              "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		Wallet:          security.NewZeroizedBytes([]byte{1, 2, 3, 4}),
		Amount:          big.NewInt(123456789),
		Method:          Token("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Message:         []byte("order #42"),
		PaidAtTimestamp: 1700000000,
		Expires:         1700003600,
		Receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      common.HexToHash("0xabc1"),
			GasUsed:     21000,
			BlockNumber: big.NewInt(42),
		},
	}

	data, err := invoice.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeInvoice(data)
	require.NoError(t, err)

	assert.Equal(t, invoice.To, decoded.To)
	assert.Equal(t, invoice.Wallet.Bytes(), decoded.Wallet.Bytes())
	assert.Equal(t, invoice.Amount, decoded.Amount)
	assert.Equal(t, invoice.Method, decoded.Method)
	assert.Equal(t, invoice.Message, decoded.Message)
	assert.Equal(t, invoice.PaidAtTimestamp, decoded.PaidAtTimestamp)
	assert.Equal(t, invoice.Expires, decoded.Expires)
	require.NotNil(t, decoded.Receipt)
	assert.Equal(t, invoice.Receipt.TxHash, decoded.Receipt.TxHash)
	assert.Equal(t, invoice.Receipt.GasUsed, decoded.Receipt.GasUsed)
}

func TestInvoiceSerializeWithoutReceipt(t *testing.T) {
	invoice := Invoice{
		To:      "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		Wallet:  security.NewZeroizedBytes([]byte{1, 2, 3, 4}),
		Amount:  big.NewInt(1),
		Method:  Native(),
		Expires: 1700003600,
	}

	data, err := invoice.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeInvoice(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Receipt)
	assert.Zero(t, decoded.PaidAtTimestamp)
}

func TestDeserializeInvoiceGarbage(t *testing.T) {
	_, err := DeserializeInvoice([]byte("not msgpack"))
	assert.Error(t, err)
}

func TestPaymentMethod(t *testing.T) {
	assert.True(t, Native().IsNative())
	assert.False(t, Token("0x6B175474E89094C44Da98b954EedeAC495271d0F").IsNative())
}

func TestSettledInvoiceJSONCarriesWalletKey(t *testing.T) {
	settled := SettledInvoice{
		ID: "abc",
		Invoice: Invoice{
			To:     "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
			Wallet: security.NewZeroizedBytes([]byte{0xde, 0xad}),
			Amount: big.NewInt(5),
		},
	}

	data, err := json.Marshal(settled)
	require.NoError(t, err)
	// the hex-encoded key must survive delivery for manual recovery
	assert.Contains(t, string(data), `"wallet":"dead"`)
}
