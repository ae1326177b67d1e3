package main

import (
	"log/slog"
	"os"
	"time"

	"fireflyiii/internal/amqp"
	"fireflyiii/internal/cli"
	applog "fireflyiii/internal/log"
	"fireflyiii/internal/metrics"
	"fireflyiii/internal/services"
	"fireflyiii/internal/worker"
	"fireflyiii/pkg/firefly"
)

func main() {
	if err := cli.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("Failed to load env file", applog.FieldError, err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	if err != nil {
		slog.Error("Failed to set up logging", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting firefly-worker", "version", cli.Version)

	recorder := metrics.New()

	client, err := cli.NewFireflyClient(cfg, logger, firefly.WithObserver(recorder))
	if err != nil {
		logger.Error("Failed to create Firefly III client", applog.FieldError, err)
		os.Exit(1)
	}

	ledger, err := cli.InitLedger(cfg)
	if err != nil {
		logger.Error("Failed to open import ledger", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer ledger.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	icfg := services.DefaultImportConfig()
	icfg.DefaultSource = cfg.ImportSourceAccount
	icfg.DefaultCurrency = cfg.ImportCurrency
	icfg.ApplyRules = cfg.ImportApplyRules
	svc := services.NewImportService(ledger, client, icfg,
		services.WithRecorder(recorder),
		services.WithLogger(logger.WithComponent(applog.ComponentImport)))

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP).Logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, draining the ledger only")
	}

	w := worker.NewImportWorker(consumer, svc, ledger, recorder, worker.Config{
		BatchSize:   cfg.SyncBatchSize,
		Interval:    cfg.SyncInterval,
		MetricsAddr: cfg.MetricsAddr,
	}, logger.WithComponent(applog.ComponentWorker))

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	<-done
}
