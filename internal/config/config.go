// Package config defines the top-level configuration for the market factory
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FACTORY_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Oracle     OracleConfig     `toml:"oracle"`
	Feed       FeedConfig       `toml:"feed"`
	Planner    PlannerConfig    `toml:"planner"`
	Harvester  HarvesterConfig  `toml:"harvester"`
	Ledger     LedgerConfig     `toml:"ledger"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold-storage
// archival. Archival is skipped entirely when Enabled is false.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PolymarketConfig holds the external feed endpoint.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
}

// OracleConfig holds the spot price oracle endpoint.
type OracleConfig struct {
	BaseURL string `toml:"base_url"`
}

// FeedConfig tunes the external feed snapshot cache.
type FeedConfig struct {
	CacheTTL       duration `toml:"cache_ttl"`
	RefreshMaxWait duration `toml:"refresh_max_wait"`
}

// PlannerConfig tunes the production loop.
type PlannerConfig struct {
	Tick             duration `toml:"tick"`
	Horizon          duration `toml:"horizon"`
	BatchCap         int      `toml:"batch_cap"`
	ArchiveEvery     duration `toml:"archive_every"`
	ArchiveRetention duration `toml:"archive_retention"`
}

// HarvesterConfig tunes the template-ingestion loop that syncs the local
// catalog with the external venue's recurring series.
type HarvesterConfig struct {
	Enabled bool     `toml:"enabled"`
	Every   duration `toml:"every"`
}

// LedgerConfig identifies the system accounts and sizes the liquidity seed.
type LedgerConfig struct {
	LiquidityAccountID string  `toml:"liquidity_account_id"`
	AMMAccountID       string  `toml:"amm_account_id"`
	DefaultSeed        float64 `toml:"default_seed"`
	MinSeed            float64 `toml:"min_seed"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "factory",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "factory-archive",
			ForcePathStyle: true,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
		},
		Oracle: OracleConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
		},
		Feed: FeedConfig{
			CacheTTL:       duration{5 * time.Minute},
			RefreshMaxWait: duration{3 * time.Second},
		},
		Planner: PlannerConfig{
			Tick:             duration{30 * time.Second},
			Horizon:          duration{24 * time.Hour},
			BatchCap:         50,
			ArchiveEvery:     duration{24 * time.Hour},
			ArchiveRetention: duration{7 * 24 * time.Hour},
		},
		Harvester: HarvesterConfig{
			Enabled: true,
			Every:   duration{6 * time.Hour},
		},
		Ledger: LedgerConfig{
			LiquidityAccountID: "system-liquidity-pool",
			AMMAccountID:       "system-amm-pool",
			DefaultSeed:        500,
			MinSeed:            100,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 only matters when archival is on.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// External endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}

	// Feed
	if c.Feed.CacheTTL.Duration <= 0 {
		errs = append(errs, "feed: cache_ttl must be > 0")
	}
	if c.Feed.RefreshMaxWait.Duration <= 0 {
		errs = append(errs, "feed: refresh_max_wait must be > 0")
	}

	// Planner
	if c.Planner.Tick.Duration <= 0 {
		errs = append(errs, "planner: tick must be > 0")
	}
	if c.Planner.Horizon.Duration <= 0 {
		errs = append(errs, "planner: horizon must be > 0")
	}
	if c.Planner.BatchCap < 1 {
		errs = append(errs, "planner: batch_cap must be >= 1")
	}

	// Harvester
	if c.Harvester.Enabled && c.Harvester.Every.Duration <= 0 {
		errs = append(errs, "harvester: every must be > 0 when enabled")
	}

	// Ledger
	if c.Ledger.LiquidityAccountID == "" {
		errs = append(errs, "ledger: liquidity_account_id must not be empty")
	}
	if c.Ledger.AMMAccountID == "" {
		errs = append(errs, "ledger: amm_account_id must not be empty")
	}
	if c.Ledger.DefaultSeed <= 0 {
		errs = append(errs, "ledger: default_seed must be > 0")
	}
	if c.Ledger.MinSeed < 0 {
		errs = append(errs, "ledger: min_seed must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
