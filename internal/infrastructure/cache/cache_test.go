package cache

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rankforum/internal/domain"
)

// fakeRedis canned-responds like a tiny single-node Redis.
type fakeRedis struct {
	data map[string]string
	fail bool

	gets, sets, dels int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.fail {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(redis.Nil)
		return cmd
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.sets++
	if f.fail {
		cmd := redis.NewStatusCmd(ctx)
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.dels++
	if f.fail {
		cmd := redis.NewIntCmd(ctx)
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func addr(s string) domain.Address { return domain.Address(s) }

func TestSetGetRoundTrip(t *testing.T) {
	fr := newFakeRedis()
	c := NewScoreCache(fr, Options{TTL: time.Minute})
	ctx := context.Background()

	score := new(big.Int)
	score.SetString("10000000000000000000000", 10) // beyond 64 bits

	c.Set(ctx, addr("acct"), addr("field"), score)

	got, ok := c.Get(ctx, addr("acct"), addr("field"))
	require.True(t, ok)
	assert.Equal(t, 0, score.Cmp(got))
	assert.Equal(t, 1, fr.sets)
}

func TestGetMiss(t *testing.T) {
	c := NewScoreCache(newFakeRedis(), Options{})

	_, ok := c.Get(context.Background(), addr("a"), addr("f"))
	assert.False(t, ok)
}

func TestInvalidateEvictsBothTiers(t *testing.T) {
	fr := newFakeRedis()
	c := NewScoreCache(fr, Options{TTL: time.Minute})
	ctx := context.Background()

	c.Set(ctx, addr("a"), addr("f"), big.NewInt(500))
	c.Invalidate(ctx, addr("a"), addr("f"))

	_, ok := c.Get(ctx, addr("a"), addr("f"))
	assert.False(t, ok)
	assert.Equal(t, 1, fr.dels)
}

func TestLocalFallbackWhenRedisDown(t *testing.T) {
	fr := newFakeRedis()
	c := NewScoreCache(fr, Options{TTL: time.Minute})
	ctx := context.Background()

	c.Set(ctx, addr("a"), addr("f"), big.NewInt(42))
	fr.fail = true

	got, ok := c.Get(ctx, addr("a"), addr("f"))
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Int64())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fr := newFakeRedis()
	fr.fail = true
	c := NewScoreCache(fr, Options{FailThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Get(ctx, addr("a"), addr("f"))
	}

	assert.Equal(t, "open", c.BreakerState())
	callsWhileOpen := fr.gets
	c.Get(ctx, addr("a"), addr("f"))
	assert.Equal(t, callsWhileOpen, fr.gets)
}

func TestNilClientUsesLocalOnly(t *testing.T) {
	c := NewScoreCache(nil, Options{TTL: time.Minute})
	ctx := context.Background()

	c.Set(ctx, addr("a"), addr("f"), big.NewInt(7))
	got, ok := c.Get(ctx, addr("a"), addr("f"))
	require.True(t, ok)
	assert.Equal(t, int64(7), got.Int64())
}
