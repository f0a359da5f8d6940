package ban

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBanIsIdempotentAndTerminal(t *testing.T) {
	r := New()

	assert.False(t, r.IsBanned("mallory"))
	assert.True(t, r.Ban("mallory"))
	assert.True(t, r.IsBanned("mallory"))

	// A repeat ban is a no-op and reports no transition.
	assert.False(t, r.Ban("mallory"))
	assert.True(t, r.IsBanned("mallory"))
	assert.Equal(t, 1, r.Len())
}

func TestBansAreIndependent(t *testing.T) {
	r := New()
	r.Ban("mallory")
	assert.False(t, r.IsBanned("alice"))
}
