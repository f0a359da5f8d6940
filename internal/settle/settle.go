// Package settle applies vote events to the reputation ledger. One call to
// Settle drives a single vote through its whole lifecycle: admissibility,
// magnitude computation, reversal of a switched vote, the
// disproportionate-downvote ban check and the final score delta.
package settle

import (
	"fmt"
	"math/big"

	"github.com/sawpanic/rankforum/internal/ban"
	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/ledger"
	"github.com/sawpanic/rankforum/internal/level"
	"github.com/sawpanic/rankforum/internal/voteindex"
)

// Status is the terminal state of a vote event. Every vote ends in exactly
// one of these; rejections are values handed back to the caller, never
// silent drops.
type Status int

const (
	Applied Status = iota + 1
	BanTriggered
	DuplicateVote
	BannedActor
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case BanTriggered:
		return "ban_triggered"
	case DuplicateVote:
		return "duplicate_vote"
	case BannedActor:
		return "banned_actor"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome reports the terminal state of one vote event.
type Outcome struct {
	Status Status

	// Populated when Status == Applied.
	Magnitude *big.Int
	NewScore  *big.Int
	NewLevel  int
	Wipeout   bool
	Switched  bool
	// Upvotes and Downvotes are the author's received-vote counters in
	// the target's field after this vote.
	Upvotes   uint64
	Downvotes uint64

	// Populated when Status == BanTriggered.
	Banned domain.Address
}

// Settler owns the vote state machine. It reads and writes the score
// ledger, the vote index and the ban registry; per-target serialization is
// the caller's job (the forum engine holds an exclusive section per target
// around each Settle call).
type Settler struct {
	scores *ledger.Ledger
	bans   *ban.Registry
	votes  *voteindex.Index
}

func New(scores *ledger.Ledger, bans *ban.Registry, votes *voteindex.Index) *Settler {
	return &Settler{scores: scores, bans: bans, votes: votes}
}

// Magnitude returns the weight a vote carries:
//
//	min(100^voterLevel, 100^postedLevel * 10)
//
// The voter side contributes its full level weight, capped at ten times the
// weight of the level the author held when posting. The cap keeps a
// high-level drive-by from obliterating (or trivially inflating) low-level
// targets, while low-level voters barely dent high-level ones.
func Magnitude(postedLevel, voterLevel int) *big.Int {
	voterWeight := level.Weight(voterLevel)
	posterCap := new(big.Int).Mul(level.Weight(postedLevel), big.NewInt(10))
	if voterWeight.Cmp(posterCap) > 0 {
		return posterCap
	}
	return voterWeight
}

// Settle applies one vote by voter on target t. The voter's level is read
// live from the ledger; the target side uses the immutable posted-level
// snapshot. Bans are checked here, inside the caller's critical section,
// so a ban that landed after the request was accepted still rejects it.
func (s *Settler) Settle(voter domain.Address, t *domain.Target, dir domain.Direction) Outcome {
	if s.bans.IsBanned(voter) || s.bans.IsBanned(t.Author) {
		return Outcome{Status: BannedActor}
	}

	prev, duplicate := s.votes.Check(voter, t.Address, dir)
	if duplicate {
		return Outcome{Status: DuplicateVote}
	}

	if prev != nil {
		s.reverse(prev, t)
	}

	voterLevel := level.Level(s.scores.Get(voter, t.Field))
	mag := Magnitude(t.PostedLevel, voterLevel)

	var out Outcome
	if dir == domain.Up {
		out = s.applyUpvote(t, mag)
	} else {
		out = s.applyDownvote(t, mag)
	}
	out.Switched = prev != nil

	if out.Status == Applied || out.Status == BanTriggered {
		s.votes.Commit(domain.VoteRecord{
			Voter:     voter,
			Target:    t.Address,
			Direction: dir,
			Magnitude: mag,
		})
	}
	return out
}

func (s *Settler) applyUpvote(t *domain.Target, mag *big.Int) Outcome {
	t.VoteLedger.Add(t.VoteLedger, mag)
	t.Upvotes++

	s.scores.CountVote(t.Author, t.Field, domain.Up, 1)
	res := s.scores.ApplyDelta(t.Author, t.Field, mag)
	return Outcome{
		Status:    Applied,
		Magnitude: domain.CopyInt(mag),
		NewScore:  res.NewScore,
		NewLevel:  res.NewLevel,
		Upvotes:   res.Upvotes,
		Downvotes: res.Downvotes,
	}
}

func (s *Settler) applyDownvote(t *domain.Target, mag *big.Int) Outcome {
	t.VoteLedger.Sub(t.VoteLedger, mag)
	t.Downvotes++

	// A target whose accumulated negative weight outranks the level its
	// author posted at marks a pile-on beyond anything the author's
	// standing justifies. The author is banned and the score is left
	// alone; the ban is the only state change on this path.
	if t.VoteLedger.Sign() < 0 {
		burden := new(big.Int).Neg(t.VoteLedger)
		if level.Level(burden) > t.PostedLevel {
			s.bans.Ban(t.Author)
			return Outcome{
				Status:    BanTriggered,
				Magnitude: domain.CopyInt(mag),
				Banned:    t.Author,
			}
		}
	}

	s.scores.CountVote(t.Author, t.Field, domain.Down, 1)
	res := s.scores.ApplyDelta(t.Author, t.Field, new(big.Int).Neg(mag))
	return Outcome{
		Status:    Applied,
		Magnitude: domain.CopyInt(mag),
		NewScore:  res.NewScore,
		NewLevel:  res.NewLevel,
		Wipeout:   res.Wipeout,
		Upvotes:   res.Upvotes,
		Downvotes: res.Downvotes,
	}
}

// reverse undoes a previous vote on both the target's vote ledger and the
// author's score, using the magnitude stored when the vote settled. Levels
// may have shifted since then, so recomputing would corrupt the reversal.
func (s *Settler) reverse(prev *domain.VoteRecord, t *domain.Target) {
	switch prev.Direction {
	case domain.Up:
		t.VoteLedger.Sub(t.VoteLedger, prev.Magnitude)
		if t.Upvotes > 0 {
			t.Upvotes--
		}
		s.scores.CountVote(t.Author, t.Field, domain.Up, -1)
		s.scores.ApplyDelta(t.Author, t.Field, new(big.Int).Neg(prev.Magnitude))
	case domain.Down:
		t.VoteLedger.Add(t.VoteLedger, prev.Magnitude)
		if t.Downvotes > 0 {
			t.Downvotes--
		}
		s.scores.CountVote(t.Author, t.Field, domain.Down, -1)
		s.scores.ApplyDelta(t.Author, t.Field, prev.Magnitude)
	}
}
