package forum

import (
	"math/big"

	"github.com/sawpanic/rankforum/internal/domain"
)

// ScoreEntry is one persisted (account, field) score row, including the
// received-vote counters kept alongside it.
type ScoreEntry struct {
	Account   domain.Address
	Field     domain.Address
	Score     *big.Int
	Upvotes   uint64
	Downvotes uint64
}

// Snapshot is the persisted engine state loaded at startup.
type Snapshot struct {
	Accounts []Account
	Fields   []Field
	Targets  []domain.Target
	Votes    []domain.VoteRecord
	Scores   []ScoreEntry
	Bans     []domain.Address
}

// Restore installs a snapshot into an empty engine. It is not safe to call
// concurrently with live traffic; the caller restores before serving.
func (e *Engine) Restore(st Snapshot) {
	e.mu.Lock()
	for i := range st.Accounts {
		a := st.Accounts[i]
		e.accounts[a.Address] = &a
		if a.Name != "" {
			e.accountNames[a.Name] = a.Address
		}
	}
	for i := range st.Fields {
		f := st.Fields[i]
		e.fields[f.Address] = &f
		e.fieldNames[f.Name] = f.Address
	}
	for i := range st.Targets {
		t := copyTarget(&st.Targets[i])
		e.targets[t.Address] = &target{t: t}
	}
	e.mu.Unlock()

	for _, s := range st.Scores {
		e.scores.Seed(s.Account, s.Field, s.Score, s.Upvotes, s.Downvotes)
	}
	for _, v := range st.Votes {
		e.votes.Commit(v)
	}
	for _, a := range st.Bans {
		e.bans.Ban(a)
	}
}
