// Package forum is the engine facade: the only surface collaborators call.
// It owns the account/field/target registries, serializes votes per target,
// and drives the settlement, gating and ban components underneath.
package forum

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rankforum/internal/ban"
	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/gate"
	"github.com/sawpanic/rankforum/internal/ledger"
	"github.com/sawpanic/rankforum/internal/level"
	"github.com/sawpanic/rankforum/internal/settle"
	"github.com/sawpanic/rankforum/internal/voteindex"
)

// Account is a registered identity with its optional display name.
type Account struct {
	Address   domain.Address
	Name      string
	CreatedAt time.Time
}

// Field is a reputation scope. An account's standing in one field has no
// bearing on another.
type Field struct {
	Address domain.Address
	Name    string
}

// Recorder receives every durable state change. The engine stays
// authoritative in memory; a recorder (Postgres in production, no-op in
// tests) persists behind it. Recorder failures are logged, never allowed
// to fail the settled operation: the outcome already happened.
type Recorder interface {
	RecordAccount(ctx context.Context, a Account) error
	RecordField(ctx context.Context, f Field) error
	RecordTarget(ctx context.Context, t domain.Target) error
	RecordVote(ctx context.Context, v domain.VoteRecord) error
	RecordScore(ctx context.Context, entry ScoreEntry) error
	RecordBan(ctx context.Context, account domain.Address) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordAccount(context.Context, Account) error      { return nil }
func (NopRecorder) RecordField(context.Context, Field) error          { return nil }
func (NopRecorder) RecordTarget(context.Context, domain.Target) error { return nil }
func (NopRecorder) RecordVote(context.Context, domain.VoteRecord) error {
	return nil
}
func (NopRecorder) RecordScore(context.Context, ScoreEntry) error { return nil }
func (NopRecorder) RecordBan(context.Context, domain.Address) error { return nil }

// Engine implements the external operation contracts.
type Engine struct {
	scores  *ledger.Ledger
	bans    *ban.Registry
	votes   *voteindex.Index
	settler *settle.Settler
	gate    *gate.Gate
	rec     Recorder

	mu           sync.RWMutex
	accounts     map[domain.Address]*Account
	accountNames map[string]domain.Address
	fields       map[domain.Address]*Field
	fieldNames   map[string]domain.Address
	targets      map[domain.Address]*target
}

// target pairs the shared record with its exclusive section. Every read or
// write of the vote ledger goes through mu: the ban check is a
// read-then-write and concurrent votes on one target must serialize.
type target struct {
	mu sync.Mutex
	t  domain.Target
}

func New(rec Recorder) *Engine {
	if rec == nil {
		rec = NopRecorder{}
	}
	scores := ledger.New()
	bans := ban.New()
	votes := voteindex.New()
	return &Engine{
		scores:       scores,
		bans:         bans,
		votes:        votes,
		settler:      settle.New(scores, bans, votes),
		gate:         gate.New(scores, bans),
		rec:          rec,
		accounts:     make(map[domain.Address]*Account),
		accountNames: make(map[string]domain.Address),
		fields:       make(map[domain.Address]*Field),
		fieldNames:   make(map[string]domain.Address),
		targets:      make(map[domain.Address]*target),
	}
}

// RegisterAccount creates the account or renames an existing one. Display
// names are unique; an empty address gets a generated one.
func (e *Engine) RegisterAccount(ctx context.Context, addr domain.Address, name string) (Account, error) {
	e.mu.Lock()
	if addr == "" {
		addr = domain.NewAddress()
	}
	if name != "" {
		if holder, taken := e.accountNames[name]; taken && holder != addr {
			e.mu.Unlock()
			return Account{}, domain.ErrNameTaken
		}
	}
	a, ok := e.accounts[addr]
	if !ok {
		a = &Account{Address: addr, CreatedAt: time.Now().UTC()}
		e.accounts[addr] = a
	}
	// An empty name keeps whatever name the account already holds.
	if name != "" && a.Name != name {
		delete(e.accountNames, a.Name)
		a.Name = name
		e.accountNames[name] = addr
	}
	out := *a
	e.mu.Unlock()

	e.record(func() error { return e.rec.RecordAccount(ctx, out) })
	return out, nil
}

// ensureAccount registers an address on first interaction with no name.
func (e *Engine) ensureAccount(ctx context.Context, addr domain.Address) {
	e.mu.Lock()
	if _, ok := e.accounts[addr]; ok {
		e.mu.Unlock()
		return
	}
	a := &Account{Address: addr, CreatedAt: time.Now().UTC()}
	e.accounts[addr] = a
	out := *a
	e.mu.Unlock()

	e.record(func() error { return e.rec.RecordAccount(ctx, out) })
}

// AccountByName resolves a display name.
func (e *Engine) AccountByName(name string) (Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addr, ok := e.accountNames[name]
	if !ok {
		return Account{}, domain.ErrUnknownAccount
	}
	return *e.accounts[addr], nil
}

// CreateField registers a new reputation scope.
func (e *Engine) CreateField(ctx context.Context, name string) (Field, error) {
	e.mu.Lock()
	if _, taken := e.fieldNames[name]; taken {
		e.mu.Unlock()
		return Field{}, domain.ErrDuplicateField
	}
	f := &Field{Address: domain.NewAddress(), Name: name}
	e.fields[f.Address] = f
	e.fieldNames[name] = f.Address
	out := *f
	e.mu.Unlock()

	e.record(func() error { return e.rec.RecordField(ctx, out) })
	return out, nil
}

// FieldByName resolves a field name.
func (e *Engine) FieldByName(name string) (Field, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addr, ok := e.fieldNames[name]
	if !ok {
		return Field{}, domain.ErrUnknownField
	}
	return *e.fields[addr], nil
}

func (e *Engine) fieldExists(addr domain.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.fields[addr]
	return ok
}

// CreatePost creates a top-level post in a field. The engine snapshots the
// author's level as the immutable posted level and starts the vote ledger
// at the author's current score.
func (e *Engine) CreatePost(ctx context.Context, author, field domain.Address, contentRef string, minCommentLevel int) (domain.Target, error) {
	if !e.fieldExists(field) {
		return domain.Target{}, domain.ErrUnknownField
	}
	return e.createTarget(ctx, author, field, "", contentRef, minCommentLevel)
}

// CreateComment creates a reply under an existing post or comment,
// enforcing the parent's minimum comment level.
func (e *Engine) CreateComment(ctx context.Context, author, parent domain.Address, contentRef string, minCommentLevel int) (domain.Target, error) {
	p, err := e.snapshotTarget(parent)
	if err != nil {
		return domain.Target{}, err
	}
	if e.bans.IsBanned(author) {
		return domain.Target{}, domain.ErrBanned
	}
	if !e.gate.CanWrite(author, p.Field, p.MinCommentLevel) {
		return domain.Target{}, domain.ErrLevelTooLow
	}
	return e.createTarget(ctx, author, p.Field, parent, contentRef, minCommentLevel)
}

func (e *Engine) createTarget(ctx context.Context, author, field, parent domain.Address, contentRef string, minCommentLevel int) (domain.Target, error) {
	if e.bans.IsBanned(author) {
		return domain.Target{}, domain.ErrBanned
	}
	e.ensureAccount(ctx, author)

	score := e.scores.Get(author, field)
	t := domain.Target{
		Address:         domain.NewAddress(),
		Author:          author,
		Field:           field,
		Parent:          parent,
		PostedLevel:     level.Level(score),
		VoteLedger:      score,
		MinCommentLevel: minCommentLevel,
		ContentRef:      contentRef,
		CreatedAt:       time.Now().UTC(),
	}

	e.mu.Lock()
	e.targets[t.Address] = &target{t: t}
	e.mu.Unlock()

	out := copyTarget(&t)
	e.record(func() error { return e.rec.RecordTarget(ctx, out) })
	return out, nil
}

// CastVote settles one vote event. Unknown references surface as errors;
// everything that is part of the vote lifecycle comes back as an outcome.
func (e *Engine) CastVote(ctx context.Context, voter, targetAddr domain.Address, dir domain.Direction) (settle.Outcome, error) {
	e.mu.RLock()
	tgt, ok := e.targets[targetAddr]
	e.mu.RUnlock()
	if !ok {
		return settle.Outcome{}, domain.ErrUnknownTarget
	}
	e.ensureAccount(ctx, voter)

	tgt.mu.Lock()
	out := e.settler.Settle(voter, &tgt.t, dir)
	settled := copyTarget(&tgt.t)
	tgt.mu.Unlock()

	switch out.Status {
	case settle.Applied:
		e.record(func() error { return e.rec.RecordTarget(ctx, settled) })
		e.record(func() error {
			return e.rec.RecordVote(ctx, domain.VoteRecord{
				Voter: voter, Target: targetAddr, Direction: dir,
				Magnitude: domain.CopyInt(out.Magnitude),
			})
		})
		e.record(func() error {
			return e.rec.RecordScore(ctx, ScoreEntry{
				Account:   settled.Author,
				Field:     settled.Field,
				Score:     domain.CopyInt(out.NewScore),
				Upvotes:   out.Upvotes,
				Downvotes: out.Downvotes,
			})
		})
	case settle.BanTriggered:
		e.record(func() error { return e.rec.RecordTarget(ctx, settled) })
		e.record(func() error {
			return e.rec.RecordVote(ctx, domain.VoteRecord{
				Voter: voter, Target: targetAddr, Direction: dir,
				Magnitude: domain.CopyInt(out.Magnitude),
			})
		})
		e.record(func() error { return e.rec.RecordBan(ctx, settled.Author) })
	}
	return out, nil
}

// CanComment reports whether the account may reply to the target.
func (e *Engine) CanComment(account, targetAddr domain.Address) (bool, error) {
	t, err := e.snapshotTarget(targetAddr)
	if err != nil {
		return false, err
	}
	return e.gate.CanWrite(account, t.Field, t.MinCommentLevel), nil
}

// GetScore returns the account's score and derived level in a field.
func (e *Engine) GetScore(account, field domain.Address) (*big.Int, int) {
	score := e.scores.Get(account, field)
	return score, level.Level(score)
}

// ScoreCounters returns the received upvote and downvote counts for
// (account, field).
func (e *Engine) ScoreCounters(account, field domain.Address) (upvotes, downvotes uint64) {
	return e.scores.Counters(account, field)
}

// IsBanned reports the account's terminal ban state.
func (e *Engine) IsBanned(account domain.Address) bool {
	return e.bans.IsBanned(account)
}

// Target returns a copy of the target's current state.
func (e *Engine) Target(addr domain.Address) (domain.Target, error) {
	return e.snapshotTarget(addr)
}

func (e *Engine) snapshotTarget(addr domain.Address) (domain.Target, error) {
	e.mu.RLock()
	tgt, ok := e.targets[addr]
	e.mu.RUnlock()
	if !ok {
		return domain.Target{}, domain.ErrUnknownTarget
	}
	tgt.mu.Lock()
	defer tgt.mu.Unlock()
	return copyTarget(&tgt.t), nil
}

// Stats reports registry sizes for metrics.
func (e *Engine) Stats() (accounts, fields, targets, votes, banned int) {
	e.mu.RLock()
	accounts = len(e.accounts)
	fields = len(e.fields)
	targets = len(e.targets)
	e.mu.RUnlock()
	return accounts, fields, targets, e.votes.Len(), e.bans.Len()
}

func (e *Engine) record(fn func() error) {
	if err := fn(); err != nil {
		log.Error().Err(err).Msg("recorder write failed; in-memory state remains authoritative")
	}
}

func copyTarget(t *domain.Target) domain.Target {
	out := *t
	out.VoteLedger = domain.CopyInt(t.VoteLedger)
	return out
}
