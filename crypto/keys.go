package crypto

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"lukechampine.com/blake3"
)

// Address is the 32-byte identity of a party, program or account. It is an
// alias so callers can use the solana-go helpers directly.
type Address = solana.PublicKey

// ParseAddress decodes a base58 encoded address.
func ParseAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, fmt.Errorf("address must not be empty")
	}
	addr, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 address %q: %w", trimmed, err)
	}
	return addr, nil
}

// --- Key Management ---

// PrivateKey wraps an ed25519 signing key.
type PrivateKey struct {
	solana.PrivateKey
}

// GeneratePrivateKey returns a fresh random keypair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromBase58 decodes a base58 encoded 64-byte keypair.
func PrivateKeyFromBase58(encoded string) (*PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// DevKey deterministically derives a keypair from a label. Only meant for
// local simulations and tests where reproducible identities are convenient.
func DevKey(label string) *PrivateKey {
	seed := blake3.Sum256([]byte("rfqsettle/dev/" + label))
	return &PrivateKey{solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))}
}

// Address returns the public identity of the key.
func (k *PrivateKey) Address() Address {
	return k.PrivateKey.PublicKey()
}

// Sign produces an ed25519 signature over the payload.
func (k *PrivateKey) Sign(payload []byte) (solana.Signature, error) {
	return k.PrivateKey.Sign(payload)
}

// VerifySignature reports whether sig is a valid signature of msg by addr.
func VerifySignature(addr Address, msg []byte, sig solana.Signature) bool {
	return sig.Verify(addr, msg)
}
