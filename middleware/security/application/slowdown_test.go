package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/domain"
	"security-gateway/middleware/security/infra"
)

func TestDelayFor_APIProfile(t *testing.T) {
	p := domain.APISlowDown()

	assert.Zero(t, DelayFor(p, 1))
	assert.Zero(t, DelayFor(p, 50))
	assert.Equal(t, 500*time.Millisecond, DelayFor(p, 51))
	assert.Equal(t, time.Second, DelayFor(p, 52))
	assert.Equal(t, 20*time.Second, DelayFor(p, 90))
	assert.Equal(t, 20*time.Second, DelayFor(p, 1<<30))
}

func TestDelayFor_PublicProfile(t *testing.T) {
	p := domain.PublicSlowDown()

	assert.Zero(t, DelayFor(p, 100))
	assert.Equal(t, 250*time.Millisecond, DelayFor(p, 101))
	assert.Equal(t, 10*time.Second, DelayFor(p, 500))
}

func TestDelayFor_MonotonicAndCapped(t *testing.T) {
	p := domain.APISlowDown()
	prev := time.Duration(0)
	for n := 1; n <= 200; n++ {
		d := DelayFor(p, n)
		assert.GreaterOrEqual(t, d, prev, "count %d", n)
		assert.LessOrEqual(t, d, p.MaxDelay, "count %d", n)
		prev = d
	}
}

func TestDelayFor_NoCap(t *testing.T) {
	p := domain.SlowDownPolicy{Scope: "x", Window: time.Minute, DelayAfter: 0, Delay: time.Millisecond}
	assert.Equal(t, 1000*time.Millisecond, DelayFor(p, 1000))
}

func TestSlowDown_Delay51stRequest(t *testing.T) {
	sd := SlowDown{Store: infra.NewMemoryStore(), Clock: newFakeClock()}
	p := domain.APISlowDown()
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		d, _, err := sd.Delay(ctx, p, "slow:api|10.0.0.1")
		require.NoError(t, err)
		require.Zero(t, d, "request %d", i)
	}

	d, count, err := sd.Delay(ctx, p, "slow:api|10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 51, count)
	assert.GreaterOrEqual(t, d, 500*time.Millisecond)
	assert.LessOrEqual(t, d, 20*time.Second)
}
