package domain

import (
	"fmt"
	"math/big"
)

// Scores and vote ledgers are arbitrary-precision integers. Level weights
// grow as 100^level, which leaves 64-bit range around level 9, so all score
// arithmetic runs on math/big. Values cross process boundaries (SQL, JSON,
// redis) as decimal strings.

// ParseScore parses a decimal string into a big integer.
func ParseScore(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed score %q", s)
	}
	return n, nil
}

// CopyInt returns an independent copy of n, or zero when n is nil.
// Engine APIs hand out copies so callers cannot mutate ledger state.
func CopyInt(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(n)
}
