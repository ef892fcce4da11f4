package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/comexhq/comex/internal/domain"
)

func TestRegistry_SetAndCheck(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsAllowed("alice"))
	r.Set("alice", true)
	assert.True(t, r.IsAllowed("alice"))
	r.Set("alice", false)
	assert.False(t, r.IsAllowed("alice"))
}

func TestRegistry_SetIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Set("alice", true)
	r.Set("alice", true)
	assert.True(t, r.IsAllowed("alice"))
	r.Set("alice", false)
	r.Set("alice", false)
	assert.False(t, r.IsAllowed("alice"))
}

func TestRegistry_EscrowPreApproved(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.IsAllowed(EscrowAccount))
}

func TestRegistry_RequireCompliant(t *testing.T) {
	r := NewRegistry()
	r.Set("alice", true)

	assert.NoError(t, r.RequireCompliant("alice"))
	assert.ErrorIs(t, r.RequireCompliant("bob"), domain.ErrNotCompliant)
	assert.ErrorIs(t, r.RequireCompliant("alice", "bob"), domain.ErrNotCompliant)
}
