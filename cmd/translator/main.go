package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"blog_trans_bot/internal/article"
	"blog_trans_bot/internal/config"
	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/metrics"
	"blog_trans_bot/internal/notify"
	"blog_trans_bot/internal/publisher"
	"blog_trans_bot/internal/service"
	"blog_trans_bot/internal/storage/postgres"
	"blog_trans_bot/internal/translate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	if err := cfg.ValidateTranslator(); err != nil {
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

	var notifier service.Notifier = dryRunNotifier{}
	if !cfg.DryRun {
		notifier, err = notify.NewSender(notify.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		}, logger)
		if err != nil {
			logger.Error("failed to create email sender", "error", err)
			os.Exit(1)
		}
	}

	consumer, err := publisher.NewConsumer(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, cfg.Processor.Timeout, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	fetcher := article.NewFetcher(article.Config{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
		Retry:     cfg.HTTP.Retry.Policy(),
	}, logger)

	translator := translate.NewClient(translate.Config{
		Endpoint:   cfg.Translate.Endpoint,
		APIKey:     cfg.Translate.APIKey,
		SourceLang: cfg.Translate.SourceLang,
		Timeout:    cfg.Translate.Timeout,
	})

	policy := cfg.Translate.Retry.Policy()
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("translation failed, retrying", "attempt", attempt, "backoff", wait, "error", err)
	}

	processor := service.NewProcessorService(
		fetcher,
		translator,
		postgres.NewArtifactStore(db, cfg.Storage.Bucket),
		postgres.NewDocumentStore(db),
		postgres.NewTransactionManager(db),
		notifier,
		policy,
		domain.KeySpace{Prefix: cfg.Storage.KeyPrefix, Ext: ".html"},
		service.ProcessorConfig{
			DryRun:      cfg.DryRun,
			TargetLang:  cfg.Translate.TargetLang,
			MaxBodySize: cfg.Translate.MaxBodySize,
			ChunkSize:   cfg.Translate.ChunkSize,
			From:        cfg.Email.From,
			To:          cfg.Email.To,
		},
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, registry, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("starting blog translator",
		"target_lang", cfg.Translate.TargetLang,
		"queue", cfg.RabbitMQ.QueueName,
		"dry_run", cfg.DryRun,
	)

	err = consumer.Run(ctx, func(ctx context.Context, msg publisher.PostMessage) error {
		start := time.Now()
		err := processor.Process(ctx, msg.Post)
		m.ObserveMessage(err, time.Since(start))
		return err
	})

	stats := processor.Stats()
	logger.Info("translator stopped",
		"received", stats.Received,
		"processed", stats.Processed,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
	)

	if err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

// dryRunNotifier stands in for SMTP when nothing may be sent.
type dryRunNotifier struct{}

func (dryRunNotifier) Send(context.Context, domain.Email) error { return nil }

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
