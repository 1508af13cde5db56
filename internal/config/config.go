// Package config defines the top-level configuration for the pari-mutuel
// round service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PARI_* environment variables.
type Config struct {
	Round    RoundConfig    `toml:"round"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RoundConfig holds the parameters every new round is opened with unless the
// caller overrides them.
type RoundConfig struct {
	HouseCommission float64 `toml:"house_commission"`
	MinimumBet      float64 `toml:"minimum_bet"`
	// MaximumBet of zero means no upper bound.
	MaximumBet     float64 `toml:"maximum_bet"`
	CurrencyPlaces int     `toml:"currency_places"`
}

// Params converts the float settings to ledger round parameters.
func (r RoundConfig) Params() domain.RoundParams {
	p := domain.RoundParams{
		HouseCommission: decimal.NewFromFloat(r.HouseCommission),
		MinimumBet:      decimal.NewFromFloat(r.MinimumBet),
	}
	if r.MaximumBet > 0 {
		p.MaximumBet = decimal.NewNullDecimal(decimal.NewFromFloat(r.MaximumBet))
	}
	return p
}

// PostgresConfig holds PostgreSQL connection parameters for the round journal.
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

// RedisConfig holds Redis connection parameters and cache tuning.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StatsTTL     duration `toml:"stats_ttl"`
	LockTTL      duration `toml:"lock_ttl"`
	StreamMaxLen int      `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls how settled rounds are written to object storage.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
	// MultipartThresholdMB switches uploads to the multipart manager once an
	// archive grows past this size.
	MultipartThresholdMB int `toml:"multipart_threshold_mb"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards the mutating round endpoints. Empty disables the check.
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	ShutdownTimeout    duration `toml:"shutdown_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// WebhookURL receives every enabled alert as JSON, HMAC-signed with
	// WebhookSecret when one is set.
	WebhookURL    string   `toml:"webhook_url"`
	WebhookSecret string   `toml:"webhook_secret"`
	Events        []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Round: RoundConfig{
			HouseCommission: 0.15,
			MinimumBet:      1,
			MaximumBet:      0,
			CurrencyPlaces:  2,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "parimutuel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StatsTTL:     duration{10 * time.Minute},
			LockTTL:      duration{30 * time.Second},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "parimutuel-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:              true,
			Prefix:               "archive/rounds",
			MultipartThresholdMB: 8,
		},
		Server: ServerConfig{
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMinute: 120,
			ShutdownTimeout:    duration{10 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"round_settled", "house_retained", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"demo":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsRedis reports whether the configured mode talks to Redis.
func (c *Config) NeedsRedis() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || m == "full"
}

// NeedsPostgres reports whether the configured mode journals to Postgres.
func (c *Config) NeedsPostgres() bool {
	return strings.ToLower(c.Mode) == "full"
}

// NeedsS3 reports whether the configured mode archives to object storage.
func (c *Config) NeedsS3() bool {
	return strings.ToLower(c.Mode) == "full" && c.Archive.Enabled
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: demo, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Round
	if c.Round.HouseCommission < 0 || c.Round.HouseCommission >= 1 {
		errs = append(errs, fmt.Sprintf("round: house_commission must be in [0, 1), got %g", c.Round.HouseCommission))
	}
	if c.Round.MinimumBet < 0 {
		errs = append(errs, "round: minimum_bet must be >= 0")
	}
	if c.Round.MaximumBet < 0 {
		errs = append(errs, "round: maximum_bet must be >= 0 (0 disables the limit)")
	}
	if c.Round.MaximumBet > 0 && c.Round.MaximumBet < c.Round.MinimumBet {
		errs = append(errs, "round: maximum_bet must not be below minimum_bet")
	}
	if c.Round.CurrencyPlaces < 0 || c.Round.CurrencyPlaces > 8 {
		errs = append(errs, fmt.Sprintf("round: currency_places must be 0-8, got %d", c.Round.CurrencyPlaces))
	}

	// Postgres
	if c.NeedsPostgres() {
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
	}

	// Redis
	if c.NeedsRedis() {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// S3
	if c.NeedsS3() {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.MultipartThresholdMB < 5 {
			errs = append(errs, "archive: multipart_threshold_mb must be >= 5")
		}
	}

	// Server
	if c.NeedsRedis() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server: rate_limit_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation failed:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
