package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LADDERBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known LADDERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "LADDERBOT_MODE")
	setStr(&cfg.LogLevel, "LADDERBOT_LOG_LEVEL")

	setStr(&cfg.Exchange.RestURL, "LADDERBOT_EXCHANGE_REST_URL")
	setStr(&cfg.Exchange.WsURL, "LADDERBOT_EXCHANGE_WS_URL")
	setStr(&cfg.Exchange.APIKey, "LADDERBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.APISecret, "LADDERBOT_EXCHANGE_API_SECRET")

	setStr(&cfg.Postgres.DSN, "LADDERBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LADDERBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LADDERBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LADDERBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LADDERBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LADDERBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LADDERBOT_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "LADDERBOT_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "LADDERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LADDERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LADDERBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "LADDERBOT_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "LADDERBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LADDERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LADDERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "LADDERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LADDERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LADDERBOT_S3_SECRET_KEY")

	setStr(&cfg.Notify.TelegramToken, "LADDERBOT_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LADDERBOT_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LADDERBOT_DISCORD_WEBHOOK_URL")
}

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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
