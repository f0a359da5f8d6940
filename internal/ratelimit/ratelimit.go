// Package ratelimit throttles write traffic per acting account.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/rankforum/internal/domain"
)

// bucket pairs a token bucket with the time it last admitted a caller, so
// idle accounts can be swept out.
type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

func (b *bucket) touch() {
	b.lastSeen.Store(time.Now().UnixNano())
}

// Limiter hands every acting account its own token bucket. Buckets appear
// on first use and live until Forget or Sweep removes them.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[domain.Address]*bucket

	rps   rate.Limit
	burst int
}

func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[domain.Address]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *Limiter) bucketFor(account domain.Address) *bucket {
	l.mu.RLock()
	b := l.buckets[account]
	l.mu.RUnlock()

	if b == nil {
		l.mu.Lock()
		if b = l.buckets[account]; b == nil {
			b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
			l.buckets[account] = b
		}
		l.mu.Unlock()
	}

	b.touch()
	return b
}

// Allow reports whether the account may perform a write right now.
func (l *Limiter) Allow(account domain.Address) bool {
	return l.bucketFor(account).lim.Allow()
}

// Wait blocks until the account may write or ctx is done.
func (l *Limiter) Wait(ctx context.Context, account domain.Address) error {
	return l.bucketFor(account).lim.Wait(ctx)
}

// Forget drops the account's bucket. The next write starts a fresh one.
func (l *Limiter) Forget(account domain.Address) {
	l.mu.Lock()
	delete(l.buckets, account)
	l.mu.Unlock()
}

// Sweep removes buckets that have been idle for at least the given
// duration and reports how many were dropped.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle).UnixNano()

	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for account, b := range l.buckets {
		if b.lastSeen.Load() <= cutoff {
			delete(l.buckets, account)
			dropped++
		}
	}
	return dropped
}

// Size reports the number of live buckets.
func (l *Limiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
