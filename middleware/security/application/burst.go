package application

import (
	"context"
	"fmt"
	"time"

	"security-gateway/middleware/security/domain"
)

// BurstGuard catches short request floods that a 15 minute window would
// average away. Every request over Max within Window is refused and costs
// the IP Penalty suspicion points.
type BurstGuard struct {
	Store      domain.BurstStore
	Reputation Reputation
	Clock      domain.Clock
	Window     time.Duration
	Max        int
	Penalty    int
}

type BurstDecision struct {
	Allowed bool
	Count   int
	// Blocked is true when the penalty pushed the IP into the blocked set.
	Blocked bool
}

func (g BurstGuard) Check(ctx context.Context, ip string) (BurstDecision, error) {
	if g.Store == nil {
		return BurstDecision{Allowed: true}, nil
	}
	window := g.Window
	if window <= 0 {
		window = domain.DefaultBurstWindow
	}
	limit := g.Max
	if limit <= 0 {
		limit = domain.DefaultBurstMax
	}
	penalty := g.Penalty
	if penalty <= 0 {
		penalty = domain.DefaultBurstPenalty
	}

	c, err := g.Store.HitBurst(ctx, ip, window, now(g.Clock))
	if err != nil {
		return BurstDecision{}, fmt.Errorf("burst hit for %s: %w", ip, err)
	}
	if c.Count <= limit {
		return BurstDecision{Allowed: true, Count: c.Count}, nil
	}

	blocked, err := g.Reputation.Penalize(ctx, ip, penalty)
	if err != nil {
		return BurstDecision{Count: c.Count}, err
	}
	return BurstDecision{Count: c.Count, Blocked: blocked}, nil
}
