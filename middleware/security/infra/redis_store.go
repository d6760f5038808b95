package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"security-gateway/middleware/security/domain"
)

var _ domain.Store = (*RedisStore)(nil)

// RedisStore keeps the anti-abuse state in Redis so several gateway
// instances share counters and blocks, and blocks survive restarts.
//
// Layout (prefix "security" by default):
//
//	security:win:<key>           INCR counter, expires with its window
//	security:burst:<ip>          INCR counter, expires with the burst window
//	security:suspicion:<ip>      HASH count,last_seen; expires after suspicionTTL idle
//	security:blocked             SET of blocked IPs, never expires
//
// Expiry is done by Redis TTLs, so Sweep has nothing to do. Requires
// Redis >= 7 (EXPIRE NX).
type RedisStore struct {
	rdb          *redis.Client
	prefix       string
	suspicionTTL time.Duration
}

type RedisStoreOption func(*RedisStore)

func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithSuspicionTTL sets how long an untouched suspicion record lives.
func WithSuspicionTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.suspicionTTL = d }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:          rdb,
		prefix:       "security",
		suspicionTTL: domain.DefaultSweepMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStore) incrWindow(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	left := pttl.Val()
	if left < 0 || left > window {
		left = window
	}
	return int(incr.Val()), now.Add(left - window), nil
}

func (s *RedisStore) Increment(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (domain.WindowCounter, error) {
	n, start, err := s.incrWindow(ctx, s.key("win", string(key)), window, now)
	if err != nil {
		return domain.WindowCounter{}, fmt.Errorf("redis window incr: %w", err)
	}
	return domain.WindowCounter{Count: n, WindowStart: start}, nil
}

func (s *RedisStore) HitBurst(ctx context.Context, ip string, window time.Duration, now time.Time) (domain.BurstCounter, error) {
	n, start, err := s.incrWindow(ctx, s.key("burst", ip), window, now)
	if err != nil {
		return domain.BurstCounter{}, fmt.Errorf("redis burst incr: %w", err)
	}
	return domain.BurstCounter{Count: n, WindowStart: start}, nil
}

func (s *RedisStore) IsBlocked(ctx context.Context, ip string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key("blocked"), ip).Result()
	if err != nil {
		return false, fmt.Errorf("redis blocked lookup: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) AddSuspicion(ctx context.Context, ip string, weight int, now time.Time) (domain.SuspicionRecord, error) {
	k := s.key("suspicion", ip)

	pipe := s.rdb.TxPipeline()
	count := pipe.HIncrBy(ctx, k, "count", int64(weight))
	pipe.HSet(ctx, k, "last_seen", now.UnixMilli())
	if s.suspicionTTL > 0 {
		pipe.Expire(ctx, k, s.suspicionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.SuspicionRecord{}, fmt.Errorf("redis add suspicion: %w", err)
	}
	return domain.SuspicionRecord{Count: int(count.Val()), LastSeen: now}, nil
}

func (s *RedisStore) Suspicion(ctx context.Context, ip string) (domain.SuspicionRecord, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key("suspicion", ip)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SuspicionRecord{}, false, nil
		}
		return domain.SuspicionRecord{}, false, fmt.Errorf("redis suspicion: %w", err)
	}
	if len(vals) == 0 {
		return domain.SuspicionRecord{}, false, nil
	}

	var rec domain.SuspicionRecord
	if n, err := strconv.Atoi(vals["count"]); err == nil {
		rec.Count = n
	}
	if ms, err := strconv.ParseInt(vals["last_seen"], 10, 64); err == nil {
		rec.LastSeen = time.UnixMilli(ms)
	}
	return rec, true, nil
}

func (s *RedisStore) Block(ctx context.Context, ip string, _ time.Time) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, s.key("blocked"), ip)
	pipe.Del(ctx, s.key("suspicion", ip))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis block: %w", err)
	}
	return nil
}

func (s *RedisStore) Unblock(ctx context.Context, ip string) error {
	if err := s.rdb.SRem(ctx, s.key("blocked"), ip).Err(); err != nil {
		return fmt.Errorf("redis unblock: %w", err)
	}
	return nil
}

func (s *RedisStore) Blocked(ctx context.Context) ([]string, error) {
	ips, err := s.rdb.SMembers(ctx, s.key("blocked")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis blocked list: %w", err)
	}
	sort.Strings(ips)
	return ips, nil
}

// Sweep is a no-op: every key carries a TTL.
func (s *RedisStore) Sweep(context.Context, time.Time, time.Duration) (domain.SweepStats, error) {
	return domain.SweepStats{}, nil
}
