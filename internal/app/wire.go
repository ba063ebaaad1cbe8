package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ivmartynov/ladderbot/internal/blob/s3"
	"github.com/ivmartynov/ladderbot/internal/cache/redis"
	"github.com/ivmartynov/ladderbot/internal/config"
	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/exchange"
	"github.com/ivmartynov/ladderbot/internal/exchange/bybit"
	"github.com/ivmartynov/ladderbot/internal/notify"
	"github.com/ivmartynov/ladderbot/internal/signals"
	"github.com/ivmartynov/ladderbot/internal/store/memory"
	"github.com/ivmartynov/ladderbot/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	States   domain.StateStore
	Deals    domain.DealStore
	Exchange domain.ExchangeClient
	Venue    *bybit.Client
	Signals  *signals.StaticSource
	WorkMode domain.WorkModeProvider
	Regime   domain.RegimeProvider
	Notifier *notify.Notifier

	// Trade-mode only; nil otherwise.
	Lock     *redis.LockManager
	Archiver *s3blob.Archiver
}

// Wire constructs the concrete dependency implementations for the configured
// mode and returns them with a cleanup function releasing connections in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Signals:  signals.NewStaticSource(cfg.Instruments),
		WorkMode: workModeFromConfig(cfg.Exchange),
		Regime:   exchange.StaticRegime{Regime: domain.RegimeNormal},
		Notifier: notify.NewNotifier(buildSenders(cfg.Notify), logger),
	}

	venue := bybit.New(bybit.Config{
		RestURL:    cfg.Exchange.RestURL,
		WsURL:      cfg.Exchange.WsURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		RecvWindow: cfg.Exchange.RecvWindow,
	}, logger)
	deps.Venue = venue

	if cfg.Mode == "paper" {
		deps.States = memory.NewStateStore()
		deps.Deals = memory.NewDealStore()
		deps.Exchange = exchange.NewPaperClient(venue, logger)
		return deps, cleanup, nil
	}

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
	deps.States = postgres.NewStateStore(pgClient.Pool())
	deps.Deals = postgres.NewDealStore(pgClient.Pool())

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

	deps.Lock = redis.NewLockManager(redisClient)
	deps.Exchange = exchange.NewCachedClient(venue, redis.NewSnapshotCache(redisClient), logger)

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
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Deals,
			cfg.S3.ArchiveInterval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}

// workModeFromConfig picks the trading-hours calendar.
func workModeFromConfig(cfg config.ExchangeConfig) domain.WorkModeProvider {
	if cfg.Calendar == "session" {
		return exchange.SessionHours{OpenHour: 10, CloseHour: 18}
	}
	return exchange.AlwaysOpen{}
}

// buildSenders creates one sender per configured notification channel.
func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
