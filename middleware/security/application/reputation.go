package application

import (
	"context"
	"fmt"

	"security-gateway/middleware/security/domain"
)

// Reputation escalates suspicious IPs into the blocked set.
//
// An IP whose suspicion count goes above Threshold is blocked until it is
// explicitly unblocked (or, with the in-memory store, the process restarts).
// Good behaviour never lowers a count; only the sweeper forgets it.
type Reputation struct {
	Store     domain.ReputationStore
	Clock     domain.Clock
	Threshold int
}

func (r Reputation) threshold() int {
	if r.Threshold <= 0 {
		return domain.DefaultSuspicionThreshold
	}
	return r.Threshold
}

func (r Reputation) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if r.Store == nil {
		return false, nil
	}
	return r.Store.IsBlocked(ctx, ip)
}

// Penalize adds weight (domain.DefaultPenalty when <= 0) to ip's suspicion
// and reports whether this call moved the IP into the blocked set.
func (r Reputation) Penalize(ctx context.Context, ip string, weight int) (bool, error) {
	if r.Store == nil {
		return false, nil
	}
	if weight <= 0 {
		weight = domain.DefaultPenalty
	}

	at := now(r.Clock)
	rec, err := r.Store.AddSuspicion(ctx, ip, weight, at)
	if err != nil {
		return false, fmt.Errorf("add suspicion for %s: %w", ip, err)
	}
	if rec.Count <= r.threshold() {
		return false, nil
	}
	if err := r.Store.Block(ctx, ip, at); err != nil {
		return false, fmt.Errorf("block %s: %w", ip, err)
	}
	return true, nil
}

func (r Reputation) Unblock(ctx context.Context, ip string) error {
	if r.Store == nil {
		return domain.ErrNotBlocked
	}
	blocked, err := r.Store.IsBlocked(ctx, ip)
	if err != nil {
		return err
	}
	if !blocked {
		return fmt.Errorf("%w: %s", domain.ErrNotBlocked, ip)
	}
	return r.Store.Unblock(ctx, ip)
}

func (r Reputation) Blocked(ctx context.Context) ([]string, error) {
	if r.Store == nil {
		return nil, nil
	}
	return r.Store.Blocked(ctx)
}

func (r Reputation) Suspicion(ctx context.Context, ip string) (domain.SuspicionRecord, bool, error) {
	if r.Store == nil {
		return domain.SuspicionRecord{}, false, nil
	}
	return r.Store.Suspicion(ctx, ip)
}
