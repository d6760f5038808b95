package application

import (
	"context"
	"time"

	"security-gateway/middleware/security/domain"
)

// ConcurrencyService hands out in-flight slots with an optional wait limit.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire waits for a slot. With AcquireTimeout <= 0 it waits until ctx
// ends; otherwise at most AcquireTimeout.
//
// A wait that runs out returns domain.ErrServerBusy. If ctx itself ended
// (the client went away) its error is returned instead.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, err := s.Pool.Acquire(acqCtx)
	if err == nil {
		return release, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, domain.ErrServerBusy
}
