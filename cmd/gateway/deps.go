package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"security-gateway/internal/config"
	"security-gateway/middleware/security"
	"security-gateway/middleware/security/domain"
	"security-gateway/middleware/security/infra"
)

type deps struct {
	shield *security.Shield
	stats  domain.StatsStore
	rdb    *redis.Client
}

func (d *deps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func buildDeps(ctx context.Context, cfg *config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.Security.Store == "redis" || cfg.Stats.Backend == "redis" {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		d.rdb = rdb
	}

	var store domain.Store
	switch cfg.Security.Store {
	case "redis":
		store = infra.NewRedisStore(d.rdb,
			infra.WithRedisPrefix(cfg.Redis.Prefix),
			infra.WithSuspicionTTL(cfg.Security.Cleanup.MaxAge),
		)
	case "memory":
		store = infra.NewMemoryStore()
	default:
		d.Close()
		return nil, errors.New("unknown security.store " + cfg.Security.Store)
	}

	switch cfg.Stats.Backend {
	case "redis":
		d.stats = infra.NewRedisStatsStore(d.rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackIPs(cfg.Stats.TrackIPs),
		)
	case "memory":
		d.stats = infra.NewMemoryStatsStore(infra.WithTrackIPs(cfg.Stats.TrackIPs))
	}

	shield, err := newShield(cfg, store, d.stats, log)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.shield = shield
	return d, nil
}

func newShield(cfg *config.Config, store domain.Store, stats domain.StatsStore, log *slog.Logger) (*security.Shield, error) {
	policy, err := security.ParseFailurePolicy(cfg.Security.FailurePolicy)
	if err != nil {
		return nil, err
	}
	return security.New(security.Options{
		Store:              store,
		Stats:              stats,
		Logger:             log,
		TrustXForwardedFor: cfg.Security.TrustXForwardedFor,
		Policies:           cfg.Security.Policies(),
		SlowDowns:          cfg.Security.SlowDowns(),
		SuspicionThreshold: cfg.Security.Reputation.Threshold,
		Penalty:            cfg.Security.Reputation.Penalty,
		BurstWindow:        cfg.Security.Burst.Window,
		BurstMax:           cfg.Security.Burst.Max,
		BurstPenalty:       cfg.Security.Burst.Penalty,
		SweepMaxAge:        cfg.Security.Cleanup.MaxAge,
		FailurePolicy:      policy,
	})
}
