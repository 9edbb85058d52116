package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	hcnats "github.com/syltwerk/hotelchat/internal/adapter/nats"
	"github.com/syltwerk/hotelchat/internal/adapter/natskv"
	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/adapter/postgres"
	"github.com/syltwerk/hotelchat/internal/adapter/ristretto"
	"github.com/syltwerk/hotelchat/internal/adapter/sqlite"
	"github.com/syltwerk/hotelchat/internal/adapter/tenantfs"
	"github.com/syltwerk/hotelchat/internal/adapter/tiered"
	"github.com/syltwerk/hotelchat/internal/adapter/upstream"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/port/cache"
	"github.com/syltwerk/hotelchat/internal/port/exchangelog"
	"github.com/syltwerk/hotelchat/internal/resilience"
)

// openStore opens the configured exchange log. The "none" backend returns a nil store.
func openStore(ctx context.Context, cfg *config.Config) (exchangelog.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		slog.Info("sqlite store opened", "path", cfg.SQLite.Path)
		return store, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		return postgres.NewStore(pool), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// connectQueue connects to NATS when a URL is configured; otherwise it returns nil.
func connectQueue(ctx context.Context, cfg *config.Config) (*hcnats.Queue, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	queue, err := hcnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	slog.Info("nats connected", "url", cfg.NATS.URL)
	return queue, nil
}

// newTenantStore builds the tenant directory store with the ristretto L1
// cache, the optional NATS KV L2 cache and cross-instance invalidation.
// The returned function releases the L1 cache.
func newTenantStore(ctx context.Context, cfg *config.Config, queue *hcnats.Queue) (*tenantfs.Store, func(), error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant cache: %w", err)
	}

	var l2 cache.Cache
	if queue != nil && cfg.Cache.L2Bucket != "" {
		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			l1.Close()
			return nil, nil, fmt.Errorf("tenant cache bucket: %w", err)
		}
		l2 = natskv.New(kv)
	}

	opts := []tenantfs.Option{tenantfs.WithCache(tiered.New(l1, l2, cfg.Cache.TTL), cfg.Cache.TTL)}
	if queue != nil {
		opts = append(opts, tenantfs.WithBroadcast(queue, uuid.NewString()))
	}
	return tenantfs.New(cfg.Tenants.Dir, opts...), l1.Close, nil
}

// newUpstreamClient creates the resilient model API client with the
// configured concurrency limit and circuit breakers.
func newUpstreamClient(cfg *config.Config, opts upstream.Options, metrics *hcotel.Metrics) *upstream.Client {
	options := []upstream.Option{
		upstream.WithLimiter(resilience.NewLimiter(cfg.Upstream.MaxConcurrent)),
		upstream.WithMetrics(metrics),
	}
	if cfg.Breaker.Enabled {
		options = append(options, upstream.WithBreakers(resilience.NewSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)))
	}
	return upstream.New(opts, options...)
}

// requestTimeout leaves the handler time to write its error body before the
// server's write deadline.
func requestTimeout(writeTimeout time.Duration) time.Duration {
	const margin = 2 * time.Second
	if writeTimeout <= 2*margin {
		return writeTimeout
	}
	return writeTimeout - margin
}
