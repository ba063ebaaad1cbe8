// Package config defines the top-level configuration for the ladder trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by LADDERBOT_* environment
// variables.
type Config struct {
	Trading     TradingConfig      `toml:"trading"`
	Rebalance   RebalanceConfig    `toml:"rebalance"`
	Exchange    ExchangeConfig     `toml:"exchange"`
	Instruments []InstrumentConfig `toml:"instruments"`
	Postgres    PostgresConfig     `toml:"postgres"`
	Redis       RedisConfig        `toml:"redis"`
	S3          S3Config           `toml:"s3"`
	Notify      NotifyConfig       `toml:"notify"`
	Mode        string             `toml:"mode"`
	LogLevel    string             `toml:"log_level"`
}

// TradingConfig holds the martingale strategy parameters.
type TradingConfig struct {
	// OrdersCount is the maximum number of simultaneously open buy orders
	// per instrument.
	OrdersCount int `toml:"orders_count"`
	// MartinPercent grows each rung's quantity geometrically.
	MartinPercent int `toml:"martin_percent"`
	// FirstStepDeviation is the entry deviation below market, in percent.
	FirstStepDeviation float64 `toml:"first_step_deviation"`
	// PercentStep is the price spacing between ladder rungs, in percent.
	PercentStep float64 `toml:"percent_step"`
	// TakeProfit is the target net margin per deal, in percent.
	TakeProfit float64 `toml:"take_profit"`
	// ReloadOrdersPercent triggers re-laddering when price rises this far
	// above the ladder reference price.
	ReloadOrdersPercent float64 `toml:"reload_orders_percent"`
	// DepositOrder is the quote value of the first rung.
	DepositOrder float64 `toml:"deposit_order"`
	// LimitDeposit is the global deposit budget shared by all instruments.
	LimitDeposit float64 `toml:"limit_deposit"`
	// MaxStateCount is the number of instrument slots the orchestrator runs.
	MaxStateCount int `toml:"max_state_count"`
	// FeePercent is the venue commission in percent.
	FeePercent float64 `toml:"fee_percent"`
	// UpdateRate is the cycle period.
	UpdateRate duration `toml:"update_rate"`
	// PlusStep widens ladder spacing for rungs at and after
	// StretchStartOrder.
	PlusStep          float64 `toml:"plus_step"`
	StretchStartOrder int     `toml:"stretch_start_order"`
}

// RebalanceConfig is the market-regime policy table: how many buy slots one
// instrument may hold in each regime. It is injected, never derived.
type RebalanceConfig struct {
	Normal  RegimeOptions `toml:"normal"`
	RiskOn  RegimeOptions `toml:"risk_on"`
	RiskOff RegimeOptions `toml:"risk_off"`
}

// RegimeOptions holds per-regime allocation limits.
type RegimeOptions struct {
	PositionMargin int `toml:"position_margin"`
}

// ExchangeConfig holds venue endpoints and credentials.
type ExchangeConfig struct {
	Name       string   `toml:"name"`
	RestURL    string   `toml:"rest_url"`
	WsURL      string   `toml:"ws_url"`
	APIKey     string   `toml:"api_key"`
	APISecret  string   `toml:"api_secret"`
	RecvWindow int      `toml:"recv_window"`
	// Calendar selects the trading-hours calendar: "always" for 24/7 venues
	// or "session" for venues with pre/post-market windows.
	Calendar string `toml:"calendar"`
}

// InstrumentConfig is one watchlist entry the signal source hands out to
// free trading slots.
type InstrumentConfig struct {
	// Symbol is the venue symbol, e.g. "BTCUSDT".
	Symbol string `toml:"symbol"`
	// QtyScale and PriceScale are the venue's quantity and price precision.
	QtyScale   int32 `toml:"qty_scale"`
	PriceScale int32 `toml:"price_scale"`
	// Priority orders competing entries; higher wins a free slot first.
	Priority int `toml:"priority"`
	// InstantBuy places the first rung at market instead of below it.
	InstantBuy bool `toml:"instant_buy"`
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

// S3Config holds S3-compatible object storage parameters for the deal
// archiver.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
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
		Trading: TradingConfig{
			OrdersCount:         4,
			MartinPercent:       20,
			FirstStepDeviation:  1.0,
			PercentStep:         0.5,
			TakeProfit:          0.5,
			ReloadOrdersPercent: 0.35,
			DepositOrder:        0.0011,
			LimitDeposit:        0.010,
			MaxStateCount:       3,
			FeePercent:          0.05,
			UpdateRate:          duration{5 * time.Second},
			PlusStep:            0,
			StretchStartOrder:   5,
		},
		Rebalance: RebalanceConfig{
			Normal:  RegimeOptions{PositionMargin: 2},
			RiskOn:  RegimeOptions{PositionMargin: 3},
			RiskOff: RegimeOptions{PositionMargin: 1},
		},
		Exchange: ExchangeConfig{
			Name:       "bybit",
			RestURL:    "https://api.bybit.com",
			WsURL:      "wss://stream.bybit.com/v5/public/spot",
			RecvWindow: 5000,
			Calendar:   "always",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "ladderbot",
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
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "ladderbot-deals",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade": true,
	"paper": true,
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

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	t := c.Trading
	if t.OrdersCount < 1 {
		errs = append(errs, "trading: orders_count must be >= 1")
	}
	if t.MartinPercent <= 0 {
		errs = append(errs, "trading: martin_percent must be > 0")
	}
	if t.PercentStep <= 0 {
		errs = append(errs, "trading: percent_step must be > 0")
	}
	if t.TakeProfit <= 0 {
		errs = append(errs, "trading: take_profit must be > 0")
	}
	if t.DepositOrder <= 0 {
		errs = append(errs, "trading: deposit_order must be > 0")
	}
	if t.LimitDeposit <= 0 {
		errs = append(errs, "trading: limit_deposit must be > 0")
	}
	if t.MaxStateCount < 1 {
		errs = append(errs, "trading: max_state_count must be >= 1")
	}
	if t.UpdateRate.Duration <= 0 {
		errs = append(errs, "trading: update_rate must be positive")
	}
	if t.StretchStartOrder < 1 {
		errs = append(errs, "trading: stretch_start_order must be >= 1")
	}

	for name, opts := range map[string]RegimeOptions{
		"normal": c.Rebalance.Normal, "risk_on": c.Rebalance.RiskOn, "risk_off": c.Rebalance.RiskOff,
	} {
		if opts.PositionMargin < 0 {
			errs = append(errs, fmt.Sprintf("rebalance: %s.position_margin must be >= 0", name))
		}
	}

	if c.Mode == "trade" {
		if c.Exchange.RestURL == "" {
			errs = append(errs, "exchange: rest_url must not be empty")
		}
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			errs = append(errs, "exchange: api_key and api_secret are required for trade mode")
		}
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
	}

	seen := map[string]bool{}
	for i, inst := range c.Instruments {
		if inst.Symbol == "" {
			errs = append(errs, fmt.Sprintf("instruments[%d]: symbol must not be empty", i))
			continue
		}
		if seen[inst.Symbol] {
			errs = append(errs, fmt.Sprintf("instruments[%d]: duplicate symbol %q", i, inst.Symbol))
		}
		seen[inst.Symbol] = true
		if inst.QtyScale < 0 || inst.PriceScale < 0 {
			errs = append(errs, fmt.Sprintf("instruments[%d]: scales must be >= 0", i))
		}
	}

	if c.Exchange.Calendar != "always" && c.Exchange.Calendar != "session" {
		errs = append(errs, fmt.Sprintf("exchange: unknown calendar %q (valid: always, session)", c.Exchange.Calendar))
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
