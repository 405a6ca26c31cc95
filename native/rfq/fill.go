package rfq

import "github.com/holiman/uint256"

// FillMakerAmount scales the quoted output to the actual input. Overfills are
// capped at output; partial fills are prorated and rounded down.
func FillMakerAmount(filledTaker, input, output uint64) (uint64, error) {
	var filled uint64
	if filledTaker >= input {
		filled = output
	} else {
		product := new(uint256.Int).Mul(uint256.NewInt(output), uint256.NewInt(filledTaker))
		filled = product.Div(product, uint256.NewInt(input)).Uint64()
	}
	if filled == 0 {
		return 0, ErrZeroMakerAmount
	}
	return filled, nil
}
