package infra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, string) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := fmt.Sprintf("security-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client, prefix
}

func TestRedisStore_IncrementWithinWindow(t *testing.T) {
	client, prefix := setupTestRedis(t)
	s := NewRedisStore(client, WithRedisPrefix(prefix))
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 3; i++ {
		c, err := s.Increment(ctx, "auth|1.2.3.4|a@b.com", time.Minute, now)
		require.NoError(t, err)
		assert.Equal(t, i, c.Count)
		assert.False(t, c.WindowStart.After(now))
	}

	ttl, err := client.PTTL(ctx, prefix+":win:auth:1.2.3.4:a@b.com").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_WindowExpires(t *testing.T) {
	client, prefix := setupTestRedis(t)
	s := NewRedisStore(client, WithRedisPrefix(prefix))
	ctx := context.Background()

	_, err := s.HitBurst(ctx, "10.0.0.1", 50*time.Millisecond, time.Now())
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)

	c, err := s.HitBurst(ctx, "10.0.0.1", 50*time.Millisecond, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count)
}

func TestRedisStore_SuspicionAndBlock(t *testing.T) {
	client, prefix := setupTestRedis(t)
	s := NewRedisStore(client, WithRedisPrefix(prefix))
	ctx := context.Background()
	now := time.Now()

	rec, err := s.AddSuspicion(ctx, "10.0.0.1", 10, now)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Count)

	rec, err = s.AddSuspicion(ctx, "10.0.0.1", 1, now)
	require.NoError(t, err)
	assert.Equal(t, 11, rec.Count)

	got, ok, err := s.Suspicion(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11, got.Count)
	assert.Equal(t, now.UnixMilli(), got.LastSeen.UnixMilli())

	require.NoError(t, s.Block(ctx, "10.0.0.1", now))
	blocked, err := s.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	_, ok, err = s.Suspicion(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ips, err := s.Blocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1"}, ips)

	require.NoError(t, s.Unblock(ctx, "10.0.0.1"))
	blocked, err = s.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRedisStore_SweepIsNoop(t *testing.T) {
	s := NewRedisStore(nil)
	st, err := s.Sweep(context.Background(), time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepStats{}, st)
}

func TestStatsField(t *testing.T) {
	assert.Equal(t, "allowed", statsField(domain.StatsEvent{Allowed: true}))
	assert.Equal(t, "denied", statsField(domain.StatsEvent{}))
	assert.Equal(t, "ip_blocked", statsField(domain.StatsEvent{Code: domain.CodeIPBlocked}))
}

func TestRedisStatsStore_Record(t *testing.T) {
	client, prefix := setupTestRedis(t)
	s := NewRedisStatsStore(client, WithStatsPrefix(prefix), WithStatsTrackIPs(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		IP: "1.2.3.4", Scope: domain.ScopeAuth, Allowed: true, Method: "POST", Route: "/api/auth/login",
	}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		IP: "1.2.3.4", Scope: domain.ScopeAuth, Code: domain.CodeRateLimitExceeded, Method: "POST", Route: "/api/auth/login",
	}))

	total, err := client.HGetAll(ctx, prefix+":total").Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"allowed": "1", "rate_limit_exceeded": "1"}, total)

	scope, err := client.HGet(ctx, prefix+":scope", "auth:rate_limit_exceeded").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", scope)

	ip, err := client.HGet(ctx, prefix+":ip:1.2.3.4", "allowed").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", ip)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"allowed": 1, "rate_limit_exceeded": 1}, snap.Total)
	assert.Equal(t, int64(1), snap.Scope["auth:allowed"])
}
