package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PARI_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PARI_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Round ──
	setFloat64(&cfg.Round.HouseCommission, "PARI_ROUND_HOUSE_COMMISSION")
	setFloat64(&cfg.Round.MinimumBet, "PARI_ROUND_MINIMUM_BET")
	setFloat64(&cfg.Round.MaximumBet, "PARI_ROUND_MAXIMUM_BET")
	setInt(&cfg.Round.CurrencyPlaces, "PARI_ROUND_CURRENCY_PLACES")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PARI_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PARI_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PARI_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PARI_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PARI_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PARI_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PARI_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PARI_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PARI_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PARI_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PARI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PARI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PARI_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PARI_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PARI_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PARI_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.StatsTTL, "PARI_REDIS_STATS_TTL")
	setDuration(&cfg.Redis.LockTTL, "PARI_REDIS_LOCK_TTL")
	setInt(&cfg.Redis.StreamMaxLen, "PARI_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PARI_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PARI_S3_REGION")
	setStr(&cfg.S3.Bucket, "PARI_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PARI_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PARI_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PARI_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PARI_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PARI_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Prefix, "PARI_ARCHIVE_PREFIX")
	setInt(&cfg.Archive.MultipartThresholdMB, "PARI_ARCHIVE_MULTIPART_THRESHOLD_MB")

	// ── Server ──
	setInt(&cfg.Server.Port, "PARI_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PARI_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PARI_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "PARI_SERVER_RATE_LIMIT_PER_MINUTE")
	setDuration(&cfg.Server.ShutdownTimeout, "PARI_SERVER_SHUTDOWN_TIMEOUT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PARI_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PARI_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PARI_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "PARI_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookSecret, "PARI_NOTIFY_WEBHOOK_SECRET")
	setStringSlice(&cfg.Notify.Events, "PARI_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PARI_MODE")
	setStr(&cfg.LogLevel, "PARI_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.

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
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
