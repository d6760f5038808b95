package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/infra"
)

func TestBurstGuard_RejectsRequestCrossingThreshold(t *testing.T) {
	store := infra.NewMemoryStore()
	clock := newFakeClock()
	rep := Reputation{Store: store, Clock: clock}
	g := BurstGuard{Store: store, Reputation: rep, Clock: clock}
	ctx := context.Background()
	ip := "198.51.100.1"

	rejected := 0
	for i := 1; i <= 201; i++ {
		dec, err := g.Check(ctx, ip)
		require.NoError(t, err)
		if !dec.Allowed {
			rejected++
			assert.Equal(t, 201, dec.Count)
		}
		clock.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 1, rejected)

	rec, found, err := rep.Suspicion(ctx, ip)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, rec.Count)
}

func TestBurstGuard_WindowResets(t *testing.T) {
	store := infra.NewMemoryStore()
	clock := newFakeClock()
	g := BurstGuard{Store: store, Reputation: Reputation{Store: store}, Clock: clock, Window: time.Second, Max: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		dec, err := g.Check(ctx, "ip")
		require.NoError(t, err)
		require.True(t, dec.Allowed)
	}
	dec, err := g.Check(ctx, "ip")
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	clock.Advance(1100 * time.Millisecond)
	dec, err = g.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 1, dec.Count)
}

func TestBurstGuard_RepeatedFloodEndsInBlock(t *testing.T) {
	store := infra.NewMemoryStore()
	g := BurstGuard{Store: store, Reputation: Reputation{Store: store}, Max: 1}
	ctx := context.Background()

	var last BurstDecision
	// 1 allowed + 6 rejections at +10 = 60 > 50
	for i := 0; i < 7; i++ {
		dec, err := g.Check(ctx, "ip")
		require.NoError(t, err)
		last = dec
	}
	assert.True(t, last.Blocked)

	blocked, err := store.IsBlocked(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, blocked)
}
