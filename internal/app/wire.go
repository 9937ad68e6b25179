package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/ppedziwiatr/nautilus/internal/blob/s3"
	"github.com/ppedziwiatr/nautilus/internal/cache/redis"
	"github.com/ppedziwiatr/nautilus/internal/config"
	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/service"
	"github.com/ppedziwiatr/nautilus/internal/store/memstore"
	"github.com/ppedziwiatr/nautilus/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store domain.OpportunityStore

	// QuoteCache and SignalBus are nil when Redis is disabled.
	QuoteCache domain.QuoteCache
	SignalBus  domain.SignalBus

	// Exporter is nil when S3 is disabled.
	Exporter service.Exporter
}

// Wire constructs the storage, cache, and blob dependencies from the config
// and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		deps.Store = memstore.New()
		logger.InfoContext(ctx, "using in-memory store")
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Storage.DSN,
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			Database: cfg.Storage.Database,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			SSLMode:  cfg.Storage.SSLMode,
			MaxConns: cfg.Storage.PoolMaxConns,
			MinConns: cfg.Storage.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Storage.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: migrations: %w", err)
			}
			logger.InfoContext(ctx, "migrations applied")
		}

		deps.Store = postgres.NewOpportunityStore(pgClient)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled {
		rdClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rdClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(rdClient)
		deps.SignalBus = redis.NewSignalBus(rdClient)
		logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Exporter = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Store)
		logger.InfoContext(ctx, "s3 blob storage configured", slog.String("bucket", cfg.S3.Bucket))
	}

	return deps, cleanup, nil
}
