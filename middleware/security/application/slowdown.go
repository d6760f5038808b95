package application

import (
	"context"
	"fmt"
	"time"

	"security-gateway/middleware/security/domain"
)

// SlowDown computes the latency to inject before a request is served.
// It never rejects.
type SlowDown struct {
	Store domain.CounterStore
	Clock domain.Clock
}

// Delay counts the hit for key and returns how long to wait.
func (s SlowDown) Delay(ctx context.Context, p domain.SlowDownPolicy, key domain.Key) (time.Duration, int, error) {
	if s.Store == nil {
		return 0, 0, nil
	}
	c, err := s.Store.Increment(ctx, key, p.Window, now(s.Clock))
	if err != nil {
		return 0, 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return DelayFor(p, c.Count), c.Count, nil
}

// DelayFor returns Delay*(count-DelayAfter) capped at MaxDelay, or zero
// while count <= DelayAfter.
func DelayFor(p domain.SlowDownPolicy, count int) time.Duration {
	over := count - p.DelayAfter
	if over <= 0 || p.Delay <= 0 {
		return 0
	}
	if p.MaxDelay > 0 && int64(over) > int64(p.MaxDelay/p.Delay) {
		return p.MaxDelay
	}
	d := time.Duration(over) * p.Delay
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
