package models

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/acceptevm/acceptevm.go/lib/security"
)

// PaymentMethod describes how an invoice is paid: with the chain's
// native asset or with an ERC-20 compatible token.
type PaymentMethod struct {
	// TokenAddress is empty for native-asset invoices.
	TokenAddress string `json:"token_address,omitempty"`
}

// Native is the payment method for the chain's own gas asset.
func Native() PaymentMethod {
	return PaymentMethod{}
}

// Token is the payment method for an ERC-20 compatible token deployed
// at the given address.
func Token(address string) PaymentMethod {
	return PaymentMethod{TokenAddress: address}
}

func (m PaymentMethod) IsNative() bool {
	return m.TokenAddress == ""
}

// Invoice : Invoice Model
//
// An invoice owns the ephemeral wallet its payment address was derived
// from. PaidAtTimestamp stays zero until the reconciliation loop
// detects payment; Receipt is set only once the sweep to the treasury
// confirmed. A paid invoice without a receipt therefore means the
// sweep failed and the wallet key inside the record is the last chance
// to recover the funds manually.
type Invoice struct {
	To              string                  `json:"to"`
	Wallet          *security.ZeroizedBytes `json:"wallet"`
	Amount          *big.Int                `json:"amount"`
	Method          PaymentMethod           `json:"method"`
	Message         []byte                  `json:"message,omitempty"`
	PaidAtTimestamp int64                   `json:"paid_at_timestamp"`
	Expires         int64                   `json:"expires"`
	Receipt         *types.Receipt          `json:"receipt,omitempty"`
}

// invoiceWire is the stored form of an invoice. Amount travels as
// big-endian bytes and the receipt as its JSON encoding, so the store
// round-trips every field without knowing about go-ethereum types.
type invoiceWire struct {
	To              string `msgpack:"to"`
	Wallet          []byte `msgpack:"wallet"`
	Amount          []byte `msgpack:"amount"`
	TokenAddress    string `msgpack:"token_address"`
	Message         []byte `msgpack:"message"`
	PaidAtTimestamp int64  `msgpack:"paid_at_timestamp"`
	Expires         int64  `msgpack:"expires"`
	Receipt         []byte `msgpack:"receipt"`
}

// Serialize encodes the invoice into the self-describing binary format
// shared by every store backend.
func (i *Invoice) Serialize() ([]byte, error) {
	wire := invoiceWire{
		To:              i.To,
		Wallet:          i.Wallet.Bytes(),
		TokenAddress:    i.Method.TokenAddress,
		Message:         i.Message,
		PaidAtTimestamp: i.PaidAtTimestamp,
		Expires:         i.Expires,
	}
	if i.Amount != nil {
		wire.Amount = i.Amount.Bytes()
	}
	if i.Receipt != nil {
		receiptJSON, err := json.Marshal(i.Receipt)
		if err != nil {
			return nil, err
		}
		wire.Receipt = receiptJSON
	}
	return msgpack.Marshal(&wire)
}

// DeserializeInvoice decodes an invoice from its stored form.
func DeserializeInvoice(data []byte) (Invoice, error) {
	var wire invoiceWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return Invoice{}, err
	}
	invoice := Invoice{
		To:              wire.To,
		Wallet:          security.NewZeroizedBytes(wire.Wallet),
		Amount:          new(big.Int).SetBytes(wire.Amount),
		Method:          PaymentMethod{TokenAddress: wire.TokenAddress},
		Message:         wire.Message,
		PaidAtTimestamp: wire.PaidAtTimestamp,
		Expires:         wire.Expires,
	}
	if len(wire.Receipt) > 0 {
		receipt := &types.Receipt{}
		if err := json.Unmarshal(wire.Receipt, receipt); err != nil {
			return Invoice{}, err
		}
		invoice.Receipt = receipt
	}
	return invoice, nil
}

// SettledInvoice is the message delivered through a reflector when the
// reconciliation loop finishes with an invoice.
type SettledInvoice struct {
	ID      string  `json:"id"`
	Invoice Invoice `json:"invoice"`
}
