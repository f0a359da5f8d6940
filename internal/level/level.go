// Package level implements the exact integer level/weight math at the core
// of the reputation system. A score s sits at level L when 100^L <= s, and
// vote magnitudes scale as 100^level. Everything here is computed by exact
// big-integer multiplication: floating point (or a log) would round
// differently across platforms and replicas must agree bit-for-bit.
package level

import "math/big"

// Base is the score ratio between adjacent levels.
const Base = 100

var bigBase = big.NewInt(Base)

// Level returns the greatest L such that 100^L <= score. Scores below 1
// (including the zero starting score) are level 0.
func Level(score *big.Int) int {
	if score == nil || score.Sign() <= 0 {
		return 0
	}
	l := 0
	w := big.NewInt(1)
	next := new(big.Int)
	for {
		next.Mul(w, bigBase)
		if next.Cmp(score) > 0 {
			return l
		}
		w.Set(next)
		next = new(big.Int)
		l++
	}
}

// Weight returns 100^l, the magnitude unit for a level-l participant.
// Levels grow without bound with sustained contribution, and 100^9 already
// exceeds the 64-bit range, so the result is a big integer.
func Weight(l int) *big.Int {
	if l <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(bigBase, big.NewInt(int64(l)), nil)
}

// MinScore returns the smallest score that reaches level l. It is the
// cutoff used by level-filtered listings.
func MinScore(l int) *big.Int {
	return Weight(l)
}
