package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"blog_trans_bot/internal/config"
	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/freshness"
	"blog_trans_bot/internal/metrics"
	"blog_trans_bot/internal/publisher"
	"blog_trans_bot/internal/scheduler"
	"blog_trans_bot/internal/service"
	"blog_trans_bot/internal/source/blog"
	"blog_trans_bot/internal/storage/postgres"
	"blog_trans_bot/internal/storage/redis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single discovery pass and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	if err := cfg.ValidateReader(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	var oracle service.ExistenceOracle = postgres.NewArtifactStore(db, cfg.Storage.Bucket)
	if cfg.Redis.Address != "" {
		client, err := redis.NewClient(redis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		oracle = redis.NewCachedOracle(client, oracle, cfg.Redis.TTL, logger)
		logger.Info("existence cache enabled", "address", cfg.Redis.Address)
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	sources := make([]service.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources = append(sources, blog.New(blog.Config{
			Category:  sc.Category,
			URL:       sc.URL,
			Timeout:   cfg.HTTP.Timeout,
			UserAgent: cfg.HTTP.UserAgent,
			Retry:     cfg.HTTP.Retry.Policy(),
		}, logger))
	}

	keys := domain.KeySpace{Prefix: cfg.Storage.KeyPrefix, Ext: ".html"}
	filter := freshness.New(oracle, cfg.Sync.Lookback, keys)

	discovery := service.NewDiscoveryService(
		sources,
		filter,
		rabbitMQ,
		postgres.NewSourceStateStore(db),
		cfg.DryRun,
		logger,
	)

	registry := prometheus.NewRegistry()
	syncer := metrics.InstrumentSyncer(discovery, metrics.New(registry))

	sched := scheduler.NewScheduler(syncer, scheduler.Config{
		Interval: cfg.Sync.Interval,
		Schedule: cfg.Sync.Schedule,
		Timeout:  cfg.Sync.Timeout,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Address != "" && !*once {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, registry, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("starting blog reader",
		"sources", len(sources),
		"region", cfg.Region,
		"lookback", cfg.Sync.Lookback,
		"dry_run", cfg.DryRun,
		"once", *once,
	)

	if *once {
		if _, err := sched.RunOnce(ctx); err != nil {
			logger.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
