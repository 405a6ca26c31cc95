package rfq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLadderPicksFirstUnexpiredRung(t *testing.T) {
	ladder := Ladder{
		{Amount: 300, Expiry: 100},
		{Amount: 200, Expiry: 200},
		{Amount: 100, Expiry: 300},
	}
	cases := []struct {
		now  uint64
		want uint64
	}{
		{now: 0, want: 300},
		{now: 100, want: 300},
		{now: 101, want: 200},
		{now: 200, want: 200},
		{now: 250, want: 100},
		{now: 300, want: 100},
	}
	for _, tc := range cases {
		got, err := ladder.Evaluate(tc.now)
		require.NoError(t, err, "now=%d", tc.now)
		require.Equal(t, tc.want, got, "now=%d", tc.now)
	}

	_, err := ladder.Evaluate(301)
	require.ErrorIs(t, err, ErrOrderExpired)
}

func TestLadderViolationFailsAtAnyTime(t *testing.T) {
	increasingAmount := Ladder{{Amount: 100, Expiry: 100}, {Amount: 200, Expiry: 200}}
	sameExpiry := Ladder{{Amount: 200, Expiry: 100}, {Amount: 100, Expiry: 100}}
	lateViolation := Ladder{
		{Amount: 300, Expiry: 100},
		{Amount: 200, Expiry: 200},
		{Amount: 250, Expiry: 300},
	}
	for _, ladder := range []Ladder{increasingAmount, sameExpiry, lateViolation} {
		for _, now := range []uint64{0, 50, 150, 1_000} {
			_, err := ladder.Evaluate(now)
			require.ErrorIs(t, err, ErrInvalidOutputAmount, "ladder=%v now=%d", ladder, now)
		}
	}
}

func TestLadderEdgeCases(t *testing.T) {
	_, err := Ladder{}.Evaluate(0)
	require.ErrorIs(t, err, ErrOrderExpired)

	_, err = Ladder{{Amount: 0, Expiry: 100}}.Evaluate(10)
	require.ErrorIs(t, err, ErrOrderExpired)

	got, err := Ladder{{Amount: 7, Expiry: math.MaxUint64}}.Evaluate(math.MaxUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(7), got)
}
