package security

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroizedBytes holds the raw private key of an invoice's ephemeral
// wallet. It is the only copy of the key: whoever holds it can drain
// any residual balance at the invoice address, so the buffer is
// overwritten in place once the key is no longer needed instead of
// being left for the garbage collector.
type ZeroizedBytes struct {
	inner []byte
}

// NewZeroizedBytes wraps b and takes ownership of it. The caller must
// not keep its own reference to the slice.
func NewZeroizedBytes(b []byte) *ZeroizedBytes {
	return &ZeroizedBytes{inner: b}
}

// Bytes exposes the raw key material. The returned slice aliases the
// internal buffer and becomes unusable after Wipe.
func (z *ZeroizedBytes) Bytes() []byte {
	if z == nil {
		return nil
	}
	return z.inner
}

// Wipe overwrites the backing memory with zeroes. Safe to call more
// than once.
func (z *ZeroizedBytes) Wipe() {
	if z == nil {
		return
	}
	for i := range z.inner {
		z.inner[i] = 0
	}
}

// MarshalJSON hex-encodes the key so that a settled invoice delivered
// through a reflector still carries the material needed for manual
// recovery of unswept funds.
func (z *ZeroizedBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(z.inner))
}

func (z *ZeroizedBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	z.inner = b
	return nil
}

// IssueWallet generates a fresh secp256k1 keypair for a single invoice
// and returns the payment address together with the wrapped private
// key. go-ethereum's key generation reads from crypto/rand.
func IssueWallet() (string, *ZeroizedBytes, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", nil, fmt.Errorf("could not generate invoice wallet: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	return address, NewZeroizedBytes(crypto.FromECDSA(key)), nil
}
