// Package gate answers level-threshold permission checks for writes.
// Reading is never gated; only posting and commenting are.
package gate

import (
	"github.com/sawpanic/rankforum/internal/ban"
	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/ledger"
)

// Gate evaluates write permissions from live ledger state.
type Gate struct {
	scores *ledger.Ledger
	bans   *ban.Registry
}

func New(scores *ledger.Ledger, bans *ban.Registry) *Gate {
	return &Gate{scores: scores, bans: bans}
}

// CanWrite reports whether the account's level in the field meets the
// required threshold. Banned accounts can never write; the threshold is
// inclusive, so an account at exactly requiredLevel passes.
func (g *Gate) CanWrite(account, field domain.Address, requiredLevel int) bool {
	if g.bans.IsBanned(account) {
		return false
	}
	return g.scores.LevelOf(account, field) >= requiredLevel
}
