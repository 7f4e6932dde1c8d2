package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FACTORY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FACTORY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FACTORY_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FACTORY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FACTORY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FACTORY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FACTORY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FACTORY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FACTORY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FACTORY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FACTORY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FACTORY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FACTORY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FACTORY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FACTORY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FACTORY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FACTORY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FACTORY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FACTORY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FACTORY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FACTORY_S3_REGION")
	setStr(&cfg.S3.Bucket, "FACTORY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FACTORY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FACTORY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FACTORY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FACTORY_S3_FORCE_PATH_STYLE")

	// ── External endpoints ──
	setStr(&cfg.Polymarket.GammaHost, "FACTORY_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Oracle.BaseURL, "FACTORY_ORACLE_BASE_URL")

	// ── Feed ──
	setDuration(&cfg.Feed.CacheTTL, "FACTORY_FEED_CACHE_TTL")
	setDuration(&cfg.Feed.RefreshMaxWait, "FACTORY_FEED_REFRESH_MAX_WAIT")

	// ── Planner ──
	setDuration(&cfg.Planner.Tick, "FACTORY_PLANNER_TICK")
	setDuration(&cfg.Planner.Horizon, "FACTORY_PLANNER_HORIZON")
	setInt(&cfg.Planner.BatchCap, "FACTORY_PLANNER_BATCH_CAP")
	setDuration(&cfg.Planner.ArchiveEvery, "FACTORY_PLANNER_ARCHIVE_EVERY")
	setDuration(&cfg.Planner.ArchiveRetention, "FACTORY_PLANNER_ARCHIVE_RETENTION")

	// ── Harvester ──
	setBool(&cfg.Harvester.Enabled, "FACTORY_HARVESTER_ENABLED")
	setDuration(&cfg.Harvester.Every, "FACTORY_HARVESTER_EVERY")

	// ── Ledger ──
	setStr(&cfg.Ledger.LiquidityAccountID, "FACTORY_LEDGER_LIQUIDITY_ACCOUNT_ID")
	setStr(&cfg.Ledger.AMMAccountID, "FACTORY_LEDGER_AMM_ACCOUNT_ID")
	setFloat64(&cfg.Ledger.DefaultSeed, "FACTORY_LEDGER_DEFAULT_SEED")
	setFloat64(&cfg.Ledger.MinSeed, "FACTORY_LEDGER_MIN_SEED")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FACTORY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by a placeholder, for logging the active configuration at startup.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	redact(&out.Postgres.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
