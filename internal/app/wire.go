package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/Jock20242024/yesno-factory/internal/blob/s3"
	"github.com/Jock20242024/yesno-factory/internal/cache/redis"
	"github.com/Jock20242024/yesno-factory/internal/config"
	"github.com/Jock20242024/yesno-factory/internal/domain"
	"github.com/Jock20242024/yesno-factory/internal/oracle"
	"github.com/Jock20242024/yesno-factory/internal/platform/polymarket"
	"github.com/Jock20242024/yesno-factory/internal/store/postgres"
)

// Dependencies bundles every infrastructure-level dependency the production
// loop needs. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Templates domain.TemplateStore
	Instances domain.InstanceStore
	TxRunner  domain.TxRunner

	// Operational settings (heartbeat, scheduler switch)
	Settings domain.SettingsStore

	// External collaborators
	Feed    domain.ExternalFeed
	Catalog domain.SeriesCatalog
	Oracle  domain.PriceOracle

	// Blob storage; nil when archival is disabled.
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Templates = postgres.NewTemplateStore(pool)
	deps.Instances = postgres.NewInstanceStore(pool)
	deps.TxRunner = postgres.NewTxRunner(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Settings = redis.NewSettingsStore(redisClient)

	// --- External feed, series catalog, and oracle ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)
	deps.Feed = gamma
	deps.Catalog = gamma
	deps.Oracle = oracle.NewCoinGecko(cfg.Oracle.BaseURL)

	// --- S3 blob storage (archival only) ---
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Instances, logger)
	}

	return deps, cleanup, nil
}
