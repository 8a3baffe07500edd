package suppression

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Claim(ctx, "wf-1/lead-1/lead_created", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, "wf-1/lead-1/lead_created", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.Claim(ctx, "wf-1/lead-2/lead_created", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryStoreClaimExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	first, err := store.Claim(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	current = current.Add(2 * time.Minute)

	again, err := store.Claim(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}
