package types

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	solana "github.com/gagliardetto/solana-go"
)

var (
	// ErrMissingSignature is returned when an account flagged as signer has not
	// signed the transaction.
	ErrMissingSignature = errors.New("tx: missing signature")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("tx: invalid signature")
)

// AccountMeta references an account used by an instruction.
type AccountMeta struct {
	PublicKey  solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"isSigner"`
	IsWritable bool             `json:"isWritable"`
}

// Instruction is a single program call inside a transaction.
type Instruction struct {
	ProgramID solana.PublicKey `json:"programId"`
	Accounts  []AccountMeta    `json:"accounts"`
	Data      []byte           `json:"data"`
}

// SignatureEntry pairs a signer with its signature over the message hash.
type SignatureEntry struct {
	Signer    solana.PublicKey `json:"signer"`
	Signature solana.Signature `json:"signature"`
}

// Transaction is an ordered list of instructions executed all-or-nothing.
type Transaction struct {
	Instructions []Instruction    `json:"instructions"`
	Signatures   []SignatureEntry `json:"signatures"`
}

// Hash returns the keccak256 hash of the RLP encoded instruction list. The
// hash is the message every required signer signs.
func (tx *Transaction) Hash() ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx: nil transaction")
	}
	encoded, err := rlp.EncodeToBytes(tx.Instructions)
	if err != nil {
		return nil, fmt.Errorf("tx: encode message: %w", err)
	}
	return ethcrypto.Keccak256(encoded), nil
}

// RequiredSigners returns the distinct accounts flagged as signers, in first
// appearance order.
func (tx *Transaction) RequiredSigners() []solana.PublicKey {
	if tx == nil {
		return nil
	}
	seen := make(map[solana.PublicKey]struct{})
	out := make([]solana.PublicKey, 0)
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.PublicKey]; ok {
				continue
			}
			seen[meta.PublicKey] = struct{}{}
			out = append(out, meta.PublicKey)
		}
	}
	return out
}

// Sign appends signatures from the supplied keys. Keys that are not required
// signers are ignored.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	required := make(map[solana.PublicKey]struct{})
	for _, signer := range tx.RequiredSigners() {
		required[signer] = struct{}{}
	}
	for _, key := range keys {
		pub := key.PublicKey()
		if _, ok := required[pub]; !ok {
			continue
		}
		sig, err := key.Sign(hash)
		if err != nil {
			return fmt.Errorf("tx: sign: %w", err)
		}
		tx.Signatures = append(tx.Signatures, SignatureEntry{Signer: pub, Signature: sig})
	}
	return nil
}

// VerifySignatures checks that every required signer produced a valid
// signature and returns the authenticated signer set.
func (tx *Transaction) VerifySignatures() (map[solana.PublicKey]struct{}, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	provided := make(map[solana.PublicKey]solana.Signature, len(tx.Signatures))
	for _, entry := range tx.Signatures {
		provided[entry.Signer] = entry.Signature
	}
	signers := make(map[solana.PublicKey]struct{})
	for _, signer := range tx.RequiredSigners() {
		sig, ok := provided[signer]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !sig.Verify(signer, hash) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
		signers[signer] = struct{}{}
	}
	return signers, nil
}

// ID returns the first signature, which identifies the transaction.
func (tx *Transaction) ID() string {
	if tx == nil || len(tx.Signatures) == 0 {
		return ""
	}
	return tx.Signatures[0].Signature.String()
}
