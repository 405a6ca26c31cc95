package rfq

import "errors"

var (
	// ErrInvalidOutputAmount indicates the ladder is not ordered by
	// non-increasing amount and strictly increasing expiry.
	ErrInvalidOutputAmount = errors.New("rfq: invalid output amount")
	// ErrOrderExpired indicates no ladder entry is still valid, or the binding
	// entry pays nothing.
	ErrOrderExpired = errors.New("rfq: order expired")
	// ErrWrongSharedAccountAddress indicates an unsigned taker that is not the
	// delegated identity.
	ErrWrongSharedAccountAddress = errors.New("rfq: wrong shared account address")
	// ErrZeroTakerAmount indicates the resolved input fill is zero.
	ErrZeroTakerAmount = errors.New("rfq: zero taker amount")
	// ErrZeroMakerAmount indicates the computed output fill is zero.
	ErrZeroMakerAmount = errors.New("rfq: zero maker amount")
	// ErrInvalidNativeTokenAddress indicates a native-balance path was requested
	// for an asset other than the wrapped-native one.
	ErrInvalidNativeTokenAddress = errors.New("rfq: invalid native token address")
	// ErrMissingTemporaryWrappedSolTokenAccount indicates an unwrap without a
	// bridging account.
	ErrMissingTemporaryWrappedSolTokenAccount = errors.New("rfq: missing temporary wrapped sol token account")
	// ErrToken2022MintExtensionNotSupported indicates an extended asset with a
	// non-zero transfer fee in the current epoch.
	ErrToken2022MintExtensionNotSupported = errors.New("rfq: token-2022 mint extension not supported")

	// ErrInvalidAccount indicates a custody account that does not match the
	// party, asset or program it is supplied for.
	ErrInvalidAccount = errors.New("rfq: invalid account")
	// ErrMakerNotSigner indicates the maker did not sign the transaction.
	ErrMakerNotSigner = errors.New("rfq: maker must sign")
	// ErrWrongBridgeAccountAddress indicates a bridging account that does not
	// match its derivation.
	ErrWrongBridgeAccountAddress = errors.New("rfq: wrong bridge account address")
	// ErrUnsupportedTokenProgram indicates a custody program that is neither the
	// standard nor the extended variant.
	ErrUnsupportedTokenProgram = errors.New("rfq: unsupported token program")
	// ErrInvalidInstruction indicates malformed instruction data or accounts.
	ErrInvalidInstruction = errors.New("rfq: invalid instruction")
)
