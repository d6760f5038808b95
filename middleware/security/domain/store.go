package domain

import (
	"context"
	"time"
)

// CounterStore keeps fixed-window counters.
//
// Increment adds one hit to key and returns the counter after the hit. When
// the stored window is older than window (now - start > window) a new one
// starts at now with count 1. Expiry is lazy: nothing resets a counter
// until the next hit.
type CounterStore interface {
	Increment(ctx context.Context, key Key, window time.Duration, now time.Time) (WindowCounter, error)
}

// BurstStore keeps the short per-IP counters of the burst guard.
type BurstStore interface {
	HitBurst(ctx context.Context, ip string, window time.Duration, now time.Time) (BurstCounter, error)
}

// ReputationStore keeps suspicion records and the blocked set.
type ReputationStore interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
	AddSuspicion(ctx context.Context, ip string, weight int, now time.Time) (SuspicionRecord, error)
	Suspicion(ctx context.Context, ip string) (SuspicionRecord, bool, error)
	// Block adds ip to the blocked set and forgets its suspicion record.
	Block(ctx context.Context, ip string, now time.Time) error
	Unblock(ctx context.Context, ip string) error
	Blocked(ctx context.Context) ([]string, error)
}

// SweepStats reports what a sweep evicted.
type SweepStats struct {
	Suspicion int
	Burst     int
	Windows   int
	Idle      int
}

func (s SweepStats) Add(o SweepStats) SweepStats {
	return SweepStats{
		Suspicion: s.Suspicion + o.Suspicion,
		Burst:     s.Burst + o.Burst,
		Windows:   s.Windows + o.Windows,
		Idle:      s.Idle + o.Idle,
	}
}

func (s SweepStats) Total() int { return s.Suspicion + s.Burst + s.Windows + s.Idle }

// Sweepable is anything holding per-key state that must be evicted
// periodically to bound memory.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time, maxAge time.Duration) (SweepStats, error)
}

// Store bundles every piece of state the middleware mutates per request.
type Store interface {
	CounterStore
	BurstStore
	ReputationStore
	Sweepable
}
