package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/domain"
)

// blockingPool never frees a slot.
type blockingPool struct{}

func (blockingPool) Acquire(ctx context.Context) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(context.Context) (func(), error) {
	p.acquired++
	return func() {}, nil
}

func TestConcurrencyService_AllowsWhenNoPool(t *testing.T) {
	release, err := ConcurrencyService{}.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestConcurrencyService_TimeoutIsServerBusy(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, err := svc.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrServerBusy)
}

func TestConcurrencyService_ClientGoneIsNotServerBusy(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrServerBusy))
}

func TestConcurrencyService_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	_, err := svc.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, pool.acquired)
}
