package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"security-gateway/middleware/security/domain"
)

var _ domain.Sweepable = (*TokenBuckets)(nil)

// TokenBuckets keeps one token bucket (x/time/rate) per key. The middleware
// uses it to throttle rejection log lines per client, so a flood of refused
// requests cannot flood the logs too.
type TokenBuckets struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenBucketsOption func(*TokenBuckets)

func WithIdleTTL(d time.Duration) TokenBucketsOption {
	return func(b *TokenBuckets) { b.idleTTL = d }
}

func NewTokenBuckets(rps float64, burst int, opts ...TokenBucketsOption) *TokenBuckets {
	b := &TokenBuckets{
		entries: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AllowAt reports whether key may spend a token at now.
func (b *TokenBuckets) AllowAt(key string, now time.Time) bool {
	b.mu.Lock()
	ent, ok := b.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(b.rps, b.burst)}
		b.entries[key] = ent
	}
	ent.lastSeen = now
	b.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

func (b *TokenBuckets) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Sweep drops buckets idle for longer than the idle TTL. maxAge is only
// used when no idle TTL is configured.
func (b *TokenBuckets) Sweep(_ context.Context, now time.Time, maxAge time.Duration) (domain.SweepStats, error) {
	ttl := b.idleTTL
	if ttl <= 0 {
		ttl = maxAge
	}
	cutoff := now.Add(-ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	var st domain.SweepStats
	for k, ent := range b.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(b.entries, k)
			st.Idle++
		}
	}
	return st, nil
}
