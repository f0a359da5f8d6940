package level

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score string
		want  int
	}{
		{"0", 0},
		{"1", 0},
		{"50", 0},
		{"99", 0},
		{"100", 1},
		{"101", 1},
		{"9999", 1},
		{"10000", 2},
		{"999999", 2},
		{"1000000", 3},
		{"100000000", 4},
	}
	for _, tt := range tests {
		s, ok := new(big.Int).SetString(tt.score, 10)
		require.True(t, ok)
		assert.Equal(t, tt.want, Level(s), "level(%s)", tt.score)
	}
}

func TestLevelExactPowers(t *testing.T) {
	// level(100^L) = L and level(100^L - 1) = L-1, well past 64-bit range.
	for l := 1; l <= 20; l++ {
		w := Weight(l)
		assert.Equal(t, l, Level(w), "level(100^%d)", l)

		below := new(big.Int).Sub(w, big.NewInt(1))
		assert.Equal(t, l-1, Level(below), "level(100^%d - 1)", l)
	}
}

func TestLevelMonotonic(t *testing.T) {
	prev := 0
	s := new(big.Int)
	step, _ := new(big.Int).SetString("777777777777", 10)
	for i := 0; i < 200; i++ {
		l := Level(s)
		assert.GreaterOrEqual(t, l, prev, "level must be non-decreasing at %s", s)
		prev = l
		s.Add(s, step)
	}
}

func TestLevelNegativeIsZero(t *testing.T) {
	assert.Equal(t, 0, Level(big.NewInt(-500)))
	assert.Equal(t, 0, Level(nil))
}

func TestWeightBeyond64Bits(t *testing.T) {
	// 100^10 = 10^20 does not fit in uint64; exactness is the point.
	want, ok := new(big.Int).SetString("100000000000000000000", 10)
	require.True(t, ok)
	assert.Zero(t, want.Cmp(Weight(10)))

	assert.Zero(t, big.NewInt(1).Cmp(Weight(0)))
	assert.Zero(t, big.NewInt(1).Cmp(Weight(-3)))
	assert.Zero(t, big.NewInt(100).Cmp(Weight(1)))
}

func TestMinScoreRoundTrip(t *testing.T) {
	for l := 0; l <= 12; l++ {
		assert.Equal(t, l, Level(MinScore(l)))
	}
}
