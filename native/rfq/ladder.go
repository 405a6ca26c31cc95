package rfq

import "fmt"

// AmountWithExpiry is one rung of a quote ladder: Amount is owed if the
// settlement executes at or before Expiry (unix seconds).
type AmountWithExpiry struct {
	Amount uint64 `json:"amount" yaml:"amount"`
	Expiry uint64 `json:"expiry" yaml:"expiry"`
}

// Ladder is a maker's decaying price commitment. Later rungs stay valid longer
// and pay the same or less.
type Ladder []AmountWithExpiry

// Validate checks every rung against its predecessor.
func (l Ladder) Validate() error {
	for i := 1; i < len(l); i++ {
		prev, cur := l[i-1], l[i]
		if cur.Amount > prev.Amount || cur.Expiry <= prev.Expiry {
			return fmt.Errorf("%w: rung %d (amount %d, expiry %d) after (amount %d, expiry %d)",
				ErrInvalidOutputAmount, i, cur.Amount, cur.Expiry, prev.Amount, prev.Expiry)
		}
	}
	return nil
}

// Evaluate validates the ladder and returns the amount of the first rung that
// has not expired at now.
func (l Ladder) Evaluate(now uint64) (uint64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	for _, rung := range l {
		if rung.Expiry >= now {
			if rung.Amount == 0 {
				break
			}
			return rung.Amount, nil
		}
	}
	return 0, fmt.Errorf("%w: at %d", ErrOrderExpired, now)
}
