package ledger

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/rankforum/internal/domain"
)

const (
	alice = domain.Address("alice")
	bob   = domain.Address("bob")
	field = domain.Address("golang")
)

func TestGetDefaultsToZero(t *testing.T) {
	l := New()
	assert.Zero(t, l.Get(alice, field).Sign())
	assert.Equal(t, 0, l.LevelOf(alice, field))
}

func TestApplyDeltaAccumulates(t *testing.T) {
	l := New()

	res := l.ApplyDelta(alice, field, big.NewInt(150))
	assert.Zero(t, big.NewInt(150).Cmp(res.NewScore))
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.Wipeout)

	res = l.ApplyDelta(alice, field, big.NewInt(-50))
	assert.Zero(t, big.NewInt(100).Cmp(res.NewScore))
	assert.Equal(t, 1, res.NewLevel)

	// Fields are independent.
	assert.Zero(t, l.Get(alice, "rust").Sign())
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	l := New()
	l.ApplyDelta(alice, field, big.NewInt(50))

	// A score of 50 takes a 200-point downvote. The entry clamps to zero
	// and the pre-clamp intent (-150) is observable.
	res := l.ApplyDelta(alice, field, big.NewInt(-200))
	assert.Zero(t, res.NewScore.Sign())
	assert.Equal(t, 0, res.NewLevel)
	assert.True(t, res.Wipeout)
	assert.Zero(t, big.NewInt(-150).Cmp(res.Intended))

	// A further downvote on an already-empty entry is not a wipeout.
	res = l.ApplyDelta(alice, field, big.NewInt(-10))
	assert.Zero(t, res.NewScore.Sign())
	assert.False(t, res.Wipeout)
}

func TestGetReturnsCopy(t *testing.T) {
	l := New()
	l.ApplyDelta(alice, field, big.NewInt(42))

	got := l.Get(alice, field)
	got.SetInt64(9999)

	assert.Zero(t, big.NewInt(42).Cmp(l.Get(alice, field)))
}

func TestSeedReplacesScore(t *testing.T) {
	l := New()
	l.ApplyDelta(alice, field, big.NewInt(7))
	l.Seed(alice, field, big.NewInt(1000000), 0, 0)
	assert.Equal(t, 3, l.LevelOf(alice, field))

	l.Seed(bob, field, big.NewInt(-5), 0, 0)
	assert.Zero(t, l.Get(bob, field).Sign())
}

func TestVoteCountersTrackPerEntry(t *testing.T) {
	l := New()

	l.CountVote(alice, field, domain.Up, 1)
	l.CountVote(alice, field, domain.Up, 1)
	l.CountVote(alice, field, domain.Down, 1)

	ups, downs := l.Counters(alice, field)
	assert.Equal(t, uint64(2), ups)
	assert.Equal(t, uint64(1), downs)

	// A switch reversal decrements; counters floor at zero.
	l.CountVote(alice, field, domain.Down, -1)
	l.CountVote(alice, field, domain.Down, -1)
	ups, downs = l.Counters(alice, field)
	assert.Equal(t, uint64(2), ups)
	assert.Zero(t, downs)

	// Entries are independent and untouched keys read as zero.
	ups, downs = l.Counters(bob, field)
	assert.Zero(t, ups)
	assert.Zero(t, downs)
}

func TestDeltaResultCarriesCounters(t *testing.T) {
	l := New()

	l.CountVote(alice, field, domain.Up, 1)
	res := l.ApplyDelta(alice, field, big.NewInt(100))
	assert.Equal(t, uint64(1), res.Upvotes)
	assert.Zero(t, res.Downvotes)

	l.CountVote(alice, field, domain.Down, 1)
	res = l.ApplyDelta(alice, field, big.NewInt(-10))
	assert.Equal(t, uint64(1), res.Upvotes)
	assert.Equal(t, uint64(1), res.Downvotes)
}

func TestSeedInstallsCounters(t *testing.T) {
	l := New()
	l.Seed(alice, field, big.NewInt(100), 3, 1)

	ups, downs := l.Counters(alice, field)
	assert.Equal(t, uint64(3), ups)
	assert.Equal(t, uint64(1), downs)
}

func TestConcurrentDeltasLinearize(t *testing.T) {
	l := New()

	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				l.ApplyDelta(alice, field, big.NewInt(3))
				l.ApplyDelta(bob, field, big.NewInt(1))
			}
		}()
	}
	wg.Wait()

	want := big.NewInt(int64(workers * perWorker * 3))
	assert.Zero(t, want.Cmp(l.Get(alice, field)))
	assert.Zero(t, big.NewInt(int64(workers*perWorker)).Cmp(l.Get(bob, field)))
	assert.Equal(t, 2, l.Len())
}

func TestScoreNeverNegativeUnderMixedDeltas(t *testing.T) {
	l := New()

	deltas := []int64{50, -200, 120, -119, -1, -1, 10000, -999999, 5}
	for _, d := range deltas {
		res := l.ApplyDelta(alice, field, big.NewInt(d))
		assert.GreaterOrEqual(t, res.NewScore.Sign(), 0)
	}
	assert.GreaterOrEqual(t, l.Get(alice, field).Sign(), 0)
}
