package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NAUTILUS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NAUTILUS_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchanges ──
	setStr(&cfg.ExchangeA.Name, "NAUTILUS_EXCHANGE_A_NAME")
	setStr(&cfg.ExchangeA.RestURL, "NAUTILUS_EXCHANGE_A_REST_URL")
	setStr(&cfg.ExchangeA.WsURL, "NAUTILUS_EXCHANGE_A_WS_URL")
	setStr(&cfg.ExchangeB.Name, "NAUTILUS_EXCHANGE_B_NAME")
	setStr(&cfg.ExchangeB.RestURL, "NAUTILUS_EXCHANGE_B_REST_URL")
	setStr(&cfg.ExchangeB.WsURL, "NAUTILUS_EXCHANGE_B_WS_URL")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Symbols, "NAUTILUS_SCANNER_SYMBOLS")
	setFloat64(&cfg.Scanner.ThresholdPct, "NAUTILUS_SCANNER_THRESHOLD_PCT")
	setDuration(&cfg.Scanner.PollInterval, "NAUTILUS_SCANNER_POLL_INTERVAL")
	setDuration(&cfg.Scanner.DebounceWindow, "NAUTILUS_SCANNER_DEBOUNCE_WINDOW")
	setDuration(&cfg.Scanner.MaxQuoteAge, "NAUTILUS_SCANNER_MAX_QUOTE_AGE")
	setBool(&cfg.Scanner.Streams, "NAUTILUS_SCANNER_STREAMS")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "NAUTILUS_STORAGE_DRIVER")
	setStr(&cfg.Storage.DSN, "NAUTILUS_STORAGE_DSN")
	setStr(&cfg.Storage.Host, "NAUTILUS_STORAGE_HOST")
	setInt(&cfg.Storage.Port, "NAUTILUS_STORAGE_PORT")
	setStr(&cfg.Storage.Database, "NAUTILUS_STORAGE_DATABASE")
	setStr(&cfg.Storage.User, "NAUTILUS_STORAGE_USER")
	setStr(&cfg.Storage.Password, "NAUTILUS_STORAGE_PASSWORD")
	setStr(&cfg.Storage.SSLMode, "NAUTILUS_STORAGE_SSL_MODE")
	setInt(&cfg.Storage.PoolMaxConns, "NAUTILUS_STORAGE_POOL_MAX_CONNS")
	setInt(&cfg.Storage.PoolMinConns, "NAUTILUS_STORAGE_POOL_MIN_CONNS")
	setBool(&cfg.Storage.RunMigrations, "NAUTILUS_STORAGE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NAUTILUS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NAUTILUS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NAUTILUS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NAUTILUS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NAUTILUS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NAUTILUS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NAUTILUS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NAUTILUS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NAUTILUS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NAUTILUS_S3_REGION")
	setStr(&cfg.S3.Bucket, "NAUTILUS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NAUTILUS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NAUTILUS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NAUTILUS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NAUTILUS_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.Mode, "NAUTILUS_MODE")
	setStr(&cfg.LogLevel, "NAUTILUS_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
