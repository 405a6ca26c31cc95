package rfq

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/native/token"
)

// CheckTransferFee rejects assets of the extended program whose transfer fee
// in epoch is non-zero. Assets of the standard program always pass. It returns
// the asset descriptor when the program is extended, nil otherwise.
func CheckTransferFee(st *state.Manager, program *token.Program, mint solana.PublicKey, epoch uint64) (*types.Mint, error) {
	if !program.Extended() {
		return nil, nil
	}
	desc, err := program.LoadMint(st, mint)
	if err != nil {
		return nil, err
	}
	if desc.TransferFee == nil {
		return desc, nil
	}
	if fee := desc.TransferFee.EpochFee(epoch); fee.BasisPoints != 0 {
		return nil, fmt.Errorf("%w: mint %s charges %d bps in epoch %d",
			ErrToken2022MintExtensionNotSupported, mint, fee.BasisPoints, epoch)
	}
	return desc, nil
}
