// Package main provides the background worker entry point: the posting-queue
// executor and the scheduled-scan cron.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/comps"
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/estimate"
	"github.com/flipscan/internal/events"
	"github.com/flipscan/internal/images"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/metrics"
	"github.com/flipscan/internal/service"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger().WithField("process", "worker")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	listingRepo := storage.NewListingRepository(postgres)
	jobRepo := storage.NewJobRepository(postgres)
	queueRepo := storage.NewQueueRepository(postgres)
	messageRepo := storage.NewMessageRepository(postgres)
	searchRepo := storage.NewSavedSearchRepository(postgres)
	historyRepo := storage.NewPriceHistoryRepository(clickhouse)

	registry, agent := adapter.BuildRegistry(cfg, logger)

	var soldFetcher comps.SoldFetcher
	if mercariCfg, ok := cfg.Platforms.Platforms["mercari"]; ok && mercariCfg.APIKey != "" {
		soldFetcher = adapter.NewMercariScraper(mercariCfg.BaseURL, mercariCfg.APIKey, cfg.Scraper.NavTimeout, logger)
	}
	compsService := comps.NewService(cfg.Comps, historyRepo, soldFetcher, redis, logger)

	estimator := estimate.NewEstimator(cfg.Estimator, estimate.DefaultWeights())
	recorder := metrics.NewInMemoryRecorder()
	sink := events.NewLogSink(logger)

	listingService := service.NewListingService(
		listingRepo, estimator, compsService, images.NewRedisCache(redis, 24*time.Hour),
		cfg.Estimator.OpportunityThreshold, logger,
	)
	scrapeService := service.NewScrapeService(jobRepo, registry, listingService, sink, recorder, cfg.Scraper.MaxItems, logger)
	queueService := service.NewQueueService(queueRepo, cfg.Queue.DefaultMaxRetries, logger)
	messageService := service.NewMessageService(
		messageRepo, listingRepo, queueService, cfg.Estimator.NegotiationOfferPct, logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Posting-queue executor needs the browser agent for outbound actions
	if agent != nil {
		executor := worker.NewExecutor(
			queueRepo, queueService, messageService,
			worker.NewAgentRunner(agent, logger),
			cfg.Queue, recorder, logger,
		)
		go executor.Start(ctx)
	} else {
		logger.Warn("No browser agent configured, posting-queue executor disabled")
	}

	scheduler := worker.NewScheduler(
		searchRepo, scrapeService,
		cfg.Scraper.ScanSchedule, cfg.Scraper.MaxSessions, logger,
	)
	started, err := scheduler.Start(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start scan scheduler")
	}
	if started {
		defer scheduler.Stop()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Worker shutting down")
}
