// Package cache provides a Redis-backed read cache for settled scores,
// with a circuit breaker and an in-process fallback when Redis degrades.
package cache

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/rankforum/internal/domain"
)

// redisClient is the slice of redis.Cmdable the cache actually uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ScoreCache caches account scores keyed by (account, field). Scores are
// stored as decimal strings so arbitrary precision survives the round trip.
type ScoreCache struct {
	client  redisClient
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker

	mu     sync.RWMutex
	local  map[string]localEntry
	maxLoc int
}

type localEntry struct {
	value   string
	expires time.Time
}

// Options tune the cache.
type Options struct {
	TTL           time.Duration
	MaxLocal      int
	BreakerPause  time.Duration
	FailThreshold uint32
}

func defaultOptions(o Options) Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.MaxLocal <= 0 {
		o.MaxLocal = 4096
	}
	if o.BreakerPause <= 0 {
		o.BreakerPause = 15 * time.Second
	}
	if o.FailThreshold == 0 {
		o.FailThreshold = 5
	}
	return o
}

// NewScoreCache wraps a Redis client. The client may be nil, in which
// case only the in-process fallback is used.
func NewScoreCache(client redisClient, opts Options) *ScoreCache {
	opts = defaultOptions(opts)

	settings := gobreaker.Settings{
		Name:     "score-cache",
		Interval: time.Minute,
		Timeout:  opts.BreakerPause,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Score cache breaker state change")
		},
	}

	return &ScoreCache{
		client:  client,
		ttl:     opts.TTL,
		breaker: gobreaker.NewCircuitBreaker(settings),
		local:   make(map[string]localEntry),
		maxLoc:  opts.MaxLocal,
	}
}

func scoreKey(account, field domain.Address) string {
	return fmt.Sprintf("score:%s:%s", account, field)
}

// Get returns the cached score for (account, field), or ok=false on a miss.
func (c *ScoreCache) Get(ctx context.Context, account, field domain.Address) (*big.Int, bool) {
	key := scoreKey(account, field)

	if c.client != nil {
		raw, err := c.breaker.Execute(func() (interface{}, error) {
			return c.client.Get(ctx, key).Result()
		})
		if err == nil {
			score, perr := domain.ParseScore(raw.(string))
			if perr != nil {
				log.Error().Err(perr).Str("key", key).Msg("Corrupt cached score, evicting")
				c.Invalidate(ctx, account, field)
				return nil, false
			}
			return score, true
		}
		if err != redis.Nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
			log.Debug().Err(err).Str("key", key).Msg("Redis score lookup failed")
		}
	}

	return c.getLocal(key)
}

// Set stores a settled score in both tiers.
func (c *ScoreCache) Set(ctx context.Context, account, field domain.Address, score *big.Int) {
	key := scoreKey(account, field)
	value := score.String()

	c.setLocal(key, value)

	if c.client == nil {
		return
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Set(ctx, key, value, c.ttl).Result()
	})
	if err != nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
		log.Debug().Err(err).Str("key", key).Msg("Redis score write failed")
	}
}

// Invalidate drops a (account, field) entry from both tiers.
func (c *ScoreCache) Invalidate(ctx context.Context, account, field domain.Address) {
	key := scoreKey(account, field)

	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()

	if c.client == nil {
		return
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Del(ctx, key).Result()
	})
	if err != nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
		log.Debug().Err(err).Str("key", key).Msg("Redis score invalidation failed")
	}
}

func (c *ScoreCache) getLocal(key string) (*big.Int, bool) {
	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	score, err := domain.ParseScore(entry.value)
	if err != nil {
		return nil, false
	}
	return score, true
}

func (c *ScoreCache) setLocal(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Crude bound: drop expired entries first, then refuse growth.
	if len(c.local) >= c.maxLoc {
		now := time.Now()
		for k, e := range c.local {
			if now.After(e.expires) {
				delete(c.local, k)
			}
		}
		if len(c.local) >= c.maxLoc {
			return
		}
	}
	c.local[key] = localEntry{value: value, expires: time.Now().Add(c.ttl)}
}

// BreakerState reports the current breaker state for health endpoints.
func (c *ScoreCache) BreakerState() string {
	return c.breaker.State().String()
}
