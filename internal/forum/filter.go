package forum

import (
	"sort"
	"strings"

	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/level"
)

// Ordering selects the sort key for listings.
type Ordering int

const (
	ByTimestamp Ordering = iota
	ByVoteLedger
	ByUpvotes
	ByDownvotes
	ByNetVotes
)

// ParseOrdering maps the wire spelling to an Ordering; unknown spellings
// fall back to timestamp order.
func ParseOrdering(s string) Ordering {
	switch s {
	case "score":
		return ByVoteLedger
	case "upvote":
		return ByUpvotes
	case "downvote":
		return ByDownvotes
	case "upvote-downvote":
		return ByNetVotes
	default:
		return ByTimestamp
	}
}

// maxFilterResults caps a single listing regardless of what was asked for.
const maxFilterResults = 100

// FilterOptions shapes a listing. MinLevel < 0 disables the level filter;
// otherwise only targets whose vote ledger reaches that level are kept.
// Keyword, when set, keeps only targets whose content reference contains
// it; the engine stores references, not content, so that is the only text
// it can match.
type FilterOptions struct {
	MinLevel   int
	Keyword    string
	Ordering   Ordering
	Ascending  bool
	MaxResults int
}

// FilterPosts lists top-level posts in a field. Results are deterministic:
// ties break on creation time, then address.
func (e *Engine) FilterPosts(field domain.Address, opts FilterOptions) ([]domain.Target, error) {
	if !e.fieldExists(field) {
		return nil, domain.ErrUnknownField
	}
	return e.filter(func(t *domain.Target) bool {
		return t.IsPost() && t.Field == field
	}, opts), nil
}

// FilterComments lists direct replies to a target.
func (e *Engine) FilterComments(parent domain.Address, opts FilterOptions) ([]domain.Target, error) {
	if _, err := e.snapshotTarget(parent); err != nil {
		return nil, err
	}
	return e.filter(func(t *domain.Target) bool {
		return t.Parent == parent
	}, opts), nil
}

func (e *Engine) filter(keep func(*domain.Target) bool, opts FilterOptions) []domain.Target {
	if opts.MaxResults <= 0 || opts.MaxResults > maxFilterResults {
		opts.MaxResults = maxFilterResults
	}

	e.mu.RLock()
	candidates := make([]*target, 0, len(e.targets))
	for _, tgt := range e.targets {
		candidates = append(candidates, tgt)
	}
	e.mu.RUnlock()

	out := make([]domain.Target, 0)
	for _, tgt := range candidates {
		tgt.mu.Lock()
		snap := copyTarget(&tgt.t)
		tgt.mu.Unlock()

		if !keep(&snap) {
			continue
		}
		if opts.MinLevel > 0 && level.Level(snap.VoteLedger) < opts.MinLevel {
			continue
		}
		if opts.Keyword != "" && !strings.Contains(snap.ContentRef, opts.Keyword) {
			continue
		}
		out = append(out, snap)
	}

	sort.SliceStable(out, func(i, j int) bool {
		less := orderLess(&out[i], &out[j], opts.Ordering)
		if opts.Ascending {
			return less == -1
		}
		return less == 1
	})

	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// orderLess compares two targets under the given ordering and returns
// -1, 0 or 1. Equal keys fall through to creation time, then address, so
// every ordering is a total order.
func orderLess(a, b *domain.Target, o Ordering) int {
	var c int
	switch o {
	case ByVoteLedger:
		c = a.VoteLedger.Cmp(b.VoteLedger)
	case ByUpvotes:
		c = compareUint(a.Upvotes, b.Upvotes)
	case ByDownvotes:
		c = compareUint(a.Downvotes, b.Downvotes)
	case ByNetVotes:
		c = compareInt(int64(a.Upvotes)-int64(a.Downvotes), int64(b.Upvotes)-int64(b.Downvotes))
	}
	if c != 0 {
		return c
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	if a.Address < b.Address {
		return -1
	}
	if a.Address > b.Address {
		return 1
	}
	return 0
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
