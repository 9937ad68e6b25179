// Package config defines the top-level configuration for the scanner and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by NAUTILUS_* environment variables.
type Config struct {
	ExchangeA ExchangeConfig `toml:"exchange_a"`
	ExchangeB ExchangeConfig `toml:"exchange_b"`
	Scanner   ScannerConfig  `toml:"scanner"`
	Storage   StorageConfig  `toml:"storage"`
	Redis     RedisConfig    `toml:"redis"`
	S3        S3Config       `toml:"s3"`
	Mode      string         `toml:"mode"`
	LogLevel  string         `toml:"log_level"`
}

// ExchangeConfig holds the endpoints of one exchange adapter.
type ExchangeConfig struct {
	Name    string `toml:"name"`
	RestURL string `toml:"rest_url"`
	WsURL   string `toml:"ws_url"`
}

// ScannerConfig holds the detection pipeline parameters.
type ScannerConfig struct {
	// Symbols is the static symbol universe, fixed at construction.
	Symbols []string `toml:"symbols"`
	// ThresholdPct is the minimum percentage gap (inclusive) that counts
	// as an opportunity. Runtime-mutable via ScannerService.SetThreshold.
	ThresholdPct float64 `toml:"threshold_pct"`
	// PollInterval is the REST scan period.
	PollInterval duration `toml:"poll_interval"`
	// DebounceWindow collapses repeated detections of the same gap for a
	// symbol into one record. Zero disables debouncing (at-least-once).
	DebounceWindow duration `toml:"debounce_window"`
	// MaxQuoteAge skips detection against quotes older than this bound.
	// Zero disables the staleness check.
	MaxQuoteAge duration `toml:"max_quote_age"`
	// Streams enables the per-exchange websocket feeds alongside polling.
	Streams bool `toml:"streams"`
}

// StorageConfig selects and configures the event store driver.
type StorageConfig struct {
	// Driver is "postgres" for the durable store or "memory" for the
	// in-process store (useful for dry runs and tests).
	Driver        string `toml:"driver"`
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

// RedisConfig holds Redis connection parameters for the live quote mirror
// and the opportunities pub/sub channel.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for export archives.
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

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		ExchangeA: ExchangeConfig{
			Name:    "hyperliquid",
			RestURL: "https://api.hyperliquid.xyz",
			WsURL:   "wss://api.hyperliquid.xyz/ws",
		},
		ExchangeB: ExchangeConfig{
			Name:    "binance",
			RestURL: "https://api.binance.com",
			WsURL:   "wss://stream.binance.com:9443",
		},
		Scanner: ScannerConfig{
			Symbols:        []string{"BTC", "ETH", "SOL"},
			ThresholdPct:   0.5,
			PollInterval:   duration{5 * time.Second},
			DebounceWindow: duration{2 * time.Second},
			MaxQuoteAge:    duration{5 * time.Second},
			Streams:        true,
		},
		Storage: StorageConfig{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          5432,
			Database:      "nautilus",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nautilus-exports",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"stats":   true,
	"recent":  true,
	"export":  true,
	"cleanup": true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validDrivers enumerates the accepted values for StorageConfig.Driver.
var validDrivers = map[string]bool{
	"postgres": true,
	"memory":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Invalid values are never
// silently clamped.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, stats, recent, export, cleanup, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchanges
	if c.ExchangeA.Name == "" || c.ExchangeB.Name == "" {
		errs = append(errs, "exchange names must not be empty")
	}
	if c.ExchangeA.Name == c.ExchangeB.Name {
		errs = append(errs, fmt.Sprintf("exchange_a and exchange_b must differ, both are %q", c.ExchangeA.Name))
	}
	if c.Mode == "scan" {
		if c.ExchangeA.RestURL == "" || c.ExchangeB.RestURL == "" {
			errs = append(errs, "exchange rest_url must not be empty in scan mode")
		}
		if c.Scanner.Streams && (c.ExchangeA.WsURL == "" || c.ExchangeB.WsURL == "") {
			errs = append(errs, "exchange ws_url must not be empty when scanner.streams is enabled")
		}
	}

	// Scanner
	if len(c.Scanner.Symbols) == 0 {
		errs = append(errs, "scanner: symbols must not be empty")
	}
	if c.Scanner.ThresholdPct <= 0 {
		errs = append(errs, fmt.Sprintf("scanner: threshold_pct must be > 0, got %g", c.Scanner.ThresholdPct))
	}
	if c.Scanner.PollInterval.Duration <= 0 {
		errs = append(errs, "scanner: poll_interval must be > 0")
	}
	if c.Scanner.DebounceWindow.Duration < 0 {
		errs = append(errs, "scanner: debounce_window must be >= 0")
	}
	if c.Scanner.MaxQuoteAge.Duration < 0 {
		errs = append(errs, "scanner: max_quote_age must be >= 0")
	}

	// Storage
	if !validDrivers[strings.ToLower(c.Storage.Driver)] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, memory)", c.Storage.Driver))
	}
	if strings.ToLower(c.Storage.Driver) == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		if c.Storage.Host == "" {
			errs = append(errs, "storage: host must not be empty (or set storage.dsn)")
		}
		if c.Storage.Port <= 0 || c.Storage.Port > 65535 {
			errs = append(errs, fmt.Sprintf("storage: port must be 1-65535, got %d", c.Storage.Port))
		}
		if c.Storage.Database == "" {
			errs = append(errs, "storage: database must not be empty")
		}
	}
	if c.Storage.PoolMaxConns < 1 {
		errs = append(errs, "storage: pool_max_conns must be >= 1")
	}
	if c.Storage.PoolMinConns < 0 || c.Storage.PoolMinConns > c.Storage.PoolMaxConns {
		errs = append(errs, "storage: pool_min_conns must be 0..pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
