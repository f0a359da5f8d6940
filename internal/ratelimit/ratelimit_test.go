package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rankforum/internal/domain"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(1, 3)
	acct := domain.NewAddress()

	assert.True(t, l.Allow(acct))
	assert.True(t, l.Allow(acct))
	assert.True(t, l.Allow(acct))
	assert.False(t, l.Allow(acct))
}

func TestAccountsAreIsolated(t *testing.T) {
	l := NewLimiter(1, 1)
	a := domain.NewAddress()
	b := domain.NewAddress()

	assert.True(t, l.Allow(a))
	assert.False(t, l.Allow(a))
	assert.True(t, l.Allow(b))
}

func TestWaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.01, 1)
	acct := domain.NewAddress()
	require.True(t, l.Allow(acct))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, acct)
	require.Error(t, err)
}

func TestForgetResetsBucket(t *testing.T) {
	l := NewLimiter(0.01, 1)
	acct := domain.NewAddress()

	require.True(t, l.Allow(acct))
	require.False(t, l.Allow(acct))

	l.Forget(acct)
	assert.True(t, l.Allow(acct))
	assert.Equal(t, 1, l.Size())
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := NewLimiter(1, 1)
	a := domain.NewAddress()
	b := domain.NewAddress()
	l.Allow(a)
	l.Allow(b)
	require.Equal(t, 2, l.Size())

	assert.Zero(t, l.Sweep(time.Hour))
	assert.Equal(t, 2, l.Size())

	assert.Equal(t, 2, l.Sweep(0))
	assert.Zero(t, l.Size())
}

func TestConcurrentAccess(t *testing.T) {
	l := NewLimiter(1000, 1000)
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			acct := domain.NewAddress()
			for j := 0; j < 50; j++ {
				l.Allow(acct)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 8, l.Size())
}
