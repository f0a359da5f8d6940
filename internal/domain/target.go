package domain

import (
	"math/big"
	"time"
)

// Target is something that can be voted on: a post or a comment. Content
// bodies live outside the engine; ContentRef is the caller's opaque handle.
type Target struct {
	Address Address
	Author  Address
	Field   Address

	// Parent is empty for posts and the enclosing post/comment address
	// for comments.
	Parent Address

	// PostedLevel is the author's level in the field at creation time.
	// It never changes afterwards and anchors both vote magnitudes and
	// the disproportionate-downvote ban threshold.
	PostedLevel int

	// VoteLedger starts at the author's score at creation time and moves
	// with every vote settled on this target. Only votes mutate it.
	VoteLedger *big.Int

	// MinCommentLevel gates replies; zero admits everyone.
	MinCommentLevel int

	Upvotes   uint64
	Downvotes uint64

	ContentRef string
	CreatedAt  time.Time
}

// IsPost reports whether the target is a top-level post.
func (t *Target) IsPost() bool { return t.Parent == "" }

// VoteRecord is the single active vote of one voter on one target. The
// magnitude applied at settlement time is stored verbatim: levels may have
// moved since, so a reversal must never recompute it.
type VoteRecord struct {
	Voter     Address
	Target    Address
	Direction Direction
	Magnitude *big.Int
}
