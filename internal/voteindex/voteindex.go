// Package voteindex enforces the at-most-one-active-vote rule per
// (voter, target) pair and remembers the exact magnitude each vote applied
// so that a vote switch can reverse it later.
//
// The index is not a synchronization point: settlement calls Check and
// Commit while holding the per-target lock, which is what makes the
// check-then-commit pair atomic with respect to other votes on the target.
package voteindex

import (
	"sync"

	"github.com/sawpanic/rankforum/internal/domain"
)

type key struct {
	voter  domain.Address
	target domain.Address
}

// Index maps (voter, target) to the single active vote record.
type Index struct {
	mu    sync.RWMutex
	votes map[key]*domain.VoteRecord
}

func New() *Index {
	return &Index{votes: make(map[key]*domain.VoteRecord)}
}

// Check decides whether a vote in the given direction is admissible.
// A repeat in the same direction is a duplicate. Otherwise the previous
// record, if any, is returned so settlement can reverse it.
func (i *Index) Check(voter, target domain.Address, dir domain.Direction) (prev *domain.VoteRecord, duplicate bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.votes[key{voter, target}]
	if !ok {
		return nil, false
	}
	if rec.Direction == dir {
		return nil, true
	}
	return copyRecord(rec), false
}

// Commit stores the settled vote, replacing any previous record for the
// pair. Also used to reload persisted votes at startup.
func (i *Index) Commit(rec domain.VoteRecord) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.votes[key{rec.Voter, rec.Target}] = copyRecord(&rec)
}

// Lookup returns the active record for the pair, if any.
func (i *Index) Lookup(voter, target domain.Address) (*domain.VoteRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.votes[key{voter, target}]
	if !ok {
		return nil, false
	}
	return copyRecord(rec), true
}

// Len reports the number of active votes, for metrics.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.votes)
}

func copyRecord(rec *domain.VoteRecord) *domain.VoteRecord {
	out := *rec
	out.Magnitude = domain.CopyInt(rec.Magnitude)
	return &out
}
