package gate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/rankforum/internal/ban"
	"github.com/sawpanic/rankforum/internal/ledger"
)

func TestCanWriteThresholdIsInclusive(t *testing.T) {
	scores := ledger.New()
	bans := ban.New()
	g := New(scores, bans)

	scores.Seed("alice", "go", big.NewInt(10000), 0, 0) // level 2

	assert.True(t, g.CanWrite("alice", "go", 0))
	assert.True(t, g.CanWrite("alice", "go", 1))
	assert.True(t, g.CanWrite("alice", "go", 2)) // exactly at threshold
	assert.False(t, g.CanWrite("alice", "go", 3))

	// Standing in one field says nothing about another.
	assert.False(t, g.CanWrite("alice", "rust", 1))
}

func TestBannedAccountsNeverWrite(t *testing.T) {
	scores := ledger.New()
	bans := ban.New()
	g := New(scores, bans)

	scores.Seed("mallory", "go", big.NewInt(1000000), 0, 0)
	bans.Ban("mallory")

	assert.False(t, g.CanWrite("mallory", "go", 0))
}
