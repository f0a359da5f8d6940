// Package ledger holds the authoritative per (account, field) reputation
// scores. Each key is updated through a single linearizable
// read-modify-write, so votes landing on different accounts or fields never
// contend while concurrent deltas to one key serialize.
package ledger

import (
	"math/big"
	"sync"

	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/level"
)

// Key addresses one score entry.
type Key struct {
	Account domain.Address
	Field   domain.Address
}

// DeltaResult reports one settled delta. Clamping to zero is itself
// information: settlement needs to know whether a downvote consumed the
// whole remaining score.
type DeltaResult struct {
	// Intended is score+delta before the floor at zero.
	Intended *big.Int
	// NewScore is the stored result, never negative.
	NewScore *big.Int
	NewLevel int
	// Wipeout is true when a negative delta drove a positive score
	// through zero.
	Wipeout bool
	// Upvotes and Downvotes are the entry's received-vote counters as
	// of this delta.
	Upvotes   uint64
	Downvotes uint64
}

type entry struct {
	mu        sync.Mutex
	score     *big.Int
	upvotes   uint64
	downvotes uint64
}

// Ledger is the keyed score store.
type Ledger struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

func New() *Ledger {
	return &Ledger{entries: make(map[Key]*entry)}
}

func (l *Ledger) lookup(k Key) (*entry, bool) {
	l.mu.RLock()
	e, ok := l.entries[k]
	l.mu.RUnlock()
	return e, ok
}

func (l *Ledger) getOrCreate(k Key) *entry {
	if e, ok := l.lookup(k); ok {
		return e
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[k]; ok {
		return e
	}
	e := &entry{score: new(big.Int)}
	l.entries[k] = e
	return e
}

// Get returns the current score for (account, field). Accounts start at
// zero in every field on first interaction. The caller gets a copy.
func (l *Ledger) Get(account, field domain.Address) *big.Int {
	e, ok := l.lookup(Key{account, field})
	if !ok {
		return new(big.Int)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CopyInt(e.score)
}

// LevelOf returns the level derived from the current score.
func (l *Ledger) LevelOf(account, field domain.Address) int {
	return level.Level(l.Get(account, field))
}

// ApplyDelta applies a signed delta to (account, field) atomically and
// returns the clamped result: newScore = max(0, score+delta).
func (l *Ledger) ApplyDelta(account, field domain.Address, delta *big.Int) DeltaResult {
	e := l.getOrCreate(Key{account, field})
	e.mu.Lock()
	defer e.mu.Unlock()

	prevPositive := e.score.Sign() > 0
	intended := new(big.Int).Add(e.score, delta)

	if intended.Sign() < 0 {
		e.score = new(big.Int)
	} else {
		e.score = domain.CopyInt(intended)
	}

	return DeltaResult{
		Intended:  intended,
		NewScore:  domain.CopyInt(e.score),
		NewLevel:  level.Level(e.score),
		Wipeout:   intended.Sign() < 0 && prevPositive,
		Upvotes:   e.upvotes,
		Downvotes: e.downvotes,
	}
}

// CountVote adjusts the received-vote counter for (account, field) in the
// given direction. delta is +1 when a vote lands and -1 when a switch
// reverses it; counters never go below zero.
func (l *Ledger) CountVote(account, field domain.Address, dir domain.Direction, delta int) {
	e := l.getOrCreate(Key{account, field})
	e.mu.Lock()
	defer e.mu.Unlock()

	c := &e.upvotes
	if dir == domain.Down {
		c = &e.downvotes
	}
	if delta < 0 {
		if *c > 0 {
			*c--
		}
		return
	}
	*c += uint64(delta)
}

// Counters returns the received upvote and downvote counts for
// (account, field).
func (l *Ledger) Counters(account, field domain.Address) (upvotes, downvotes uint64) {
	e, ok := l.lookup(Key{account, field})
	if !ok {
		return 0, 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upvotes, e.downvotes
}

// Seed installs a persisted entry, replacing whatever is in memory.
// Used when reloading state at startup; negative seeds are rejected by
// clamping to zero.
func (l *Ledger) Seed(account, field domain.Address, score *big.Int, upvotes, downvotes uint64) {
	e := l.getOrCreate(Key{account, field})
	e.mu.Lock()
	defer e.mu.Unlock()
	if score == nil || score.Sign() < 0 {
		e.score = new(big.Int)
	} else {
		e.score = domain.CopyInt(score)
	}
	e.upvotes = upvotes
	e.downvotes = downvotes
}

// Len reports the number of tracked entries, for metrics.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
