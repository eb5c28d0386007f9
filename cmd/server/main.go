// Package main provides the API server entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/api"
	"github.com/flipscan/internal/comps"
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/estimate"
	"github.com/flipscan/internal/events"
	"github.com/flipscan/internal/images"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/metrics"
	"github.com/flipscan/internal/service"
	"github.com/flipscan/internal/storage"
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
	logger := logging.GetGlobalLogger()

	// Storage
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

	ctx := context.Background()
	if err := storage.EnsureClickHouseSchema(ctx, clickhouse); err != nil {
		logger.WithError(err).Fatal("Failed to prepare ClickHouse schema")
	}

	listingRepo := storage.NewListingRepository(postgres)
	jobRepo := storage.NewJobRepository(postgres)
	queueRepo := storage.NewQueueRepository(postgres)
	opportunityRepo := storage.NewOpportunityRepository(postgres)
	messageRepo := storage.NewMessageRepository(postgres)
	searchRepo := storage.NewSavedSearchRepository(postgres)
	historyRepo := storage.NewPriceHistoryRepository(clickhouse)

	// Marketplace adapters
	registry, _ := adapter.BuildRegistry(cfg, logger)

	// Comps: Mercari sold listings feed the market-value computation
	var soldFetcher comps.SoldFetcher
	if mercariCfg, ok := cfg.Platforms.Platforms["mercari"]; ok && mercariCfg.APIKey != "" {
		soldFetcher = adapter.NewMercariScraper(mercariCfg.BaseURL, mercariCfg.APIKey, cfg.Scraper.NavTimeout, logger)
	}
	compsService := comps.NewService(cfg.Comps, historyRepo, soldFetcher, redis, logger)

	estimator := estimate.NewEstimator(cfg.Estimator, estimate.DefaultWeights())
	imageCache := images.NewRedisCache(redis, 24*time.Hour)

	recorder := metrics.NewInMemoryRecorder()
	sink := events.NewLogSink(logger)

	listingService := service.NewListingService(
		listingRepo, estimator, compsService, imageCache,
		cfg.Estimator.OpportunityThreshold, logger,
	)
	scrapeService := service.NewScrapeService(jobRepo, registry, listingService, sink, recorder, cfg.Scraper.MaxItems, logger)
	queueService := service.NewQueueService(queueRepo, cfg.Queue.DefaultMaxRetries, logger)
	opportunityService := service.NewOpportunityService(
		opportunityRepo, listingRepo, cfg.Estimator.OpportunityThreshold, logger,
	)
	messageService := service.NewMessageService(
		messageRepo, listingRepo, queueService, cfg.Estimator.NegotiationOfferPct, logger,
	)

	server := api.NewServer(
		api.ServerConfig{Host: cfg.Server.Host, Port: cfg.Server.Port},
		scrapeService,
		listingService,
		opportunityService,
		messageService,
		queueService,
		compsService,
		searchRepo,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("API server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
