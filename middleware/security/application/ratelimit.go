package application

import (
	"context"
	"fmt"
	"time"

	"security-gateway/middleware/security/domain"
)

// RateLimiter applies fixed-window policies.
//
// It knows nothing about HTTP (headers/status); it only returns a decision.
type RateLimiter struct {
	Store domain.CounterStore
	Clock domain.Clock
}

func (s RateLimiter) Decide(ctx context.Context, p domain.Policy, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: p.Max, Remaining: p.Max}, nil
	}

	at := now(s.Clock)
	c, err := s.Store.Increment(ctx, key, p.Window, at)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("increment %s: %w", key, err)
	}

	dec := domain.Decision{
		Count:     c.Count,
		Limit:     p.Max,
		Remaining: max(p.Max-c.Count, 0),
		ResetAt:   c.WindowStart.Add(p.Window),
	}
	if c.Count <= p.Max {
		dec.Allowed = true
		return dec, nil
	}

	dec.RetryAfter = retryAfter(dec.ResetAt.Sub(at), p.Window)
	return dec, nil
}

// retryAfter rounds the time left in the window up to whole seconds so a
// client that honours it never lands in the same window again.
func retryAfter(left, window time.Duration) time.Duration {
	if left > window {
		left = window
	}
	secs := (left + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
