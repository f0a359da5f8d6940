// Package ban tracks banned accounts. A ban is terminal: the registry has
// no unban operation, and settlement refuses every write from or mutation
// to a banned account. Bans are account-wide, not per field.
package ban

import (
	"sync"

	"github.com/sawpanic/rankforum/internal/domain"
)

// Registry is the set of banned accounts.
type Registry struct {
	mu     sync.RWMutex
	banned map[domain.Address]struct{}
}

func New() *Registry {
	return &Registry{banned: make(map[domain.Address]struct{})}
}

// IsBanned reports whether the account is banned.
func (r *Registry) IsBanned(account domain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[account]
	return ok
}

// Ban marks the account banned. Idempotent; reports whether the call
// changed anything so callers can record the transition exactly once.
func (r *Registry) Ban(account domain.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.banned[account]; ok {
		return false
	}
	r.banned[account] = struct{}{}
	return true
}

// Len reports the number of banned accounts, for metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.banned)
}
