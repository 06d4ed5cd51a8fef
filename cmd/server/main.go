package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"propwatch/server/config"
	"propwatch/server/internal/api"
	"propwatch/server/internal/classifier"
	"propwatch/server/internal/dedup"
	"propwatch/server/internal/export"
	"propwatch/server/internal/limits"
	"propwatch/server/internal/notify"
	"propwatch/server/internal/orchestrator"
	"propwatch/server/internal/scheduler"
	"propwatch/server/internal/sources"
	"propwatch/server/internal/textmatch"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Optional .env for local runs; real deployments set the environment.
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load source catalog")
	}

	logger.Infof("Using database at: %s", cfg.Dedup.DBPath)
	db, err := dedup.Open(cfg.Dedup.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	store := dedup.NewStore(db, cfg.Dedup.FuzzyThreshold, logger)
	if err := store.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	client := sources.NewClient(cfg.Collection.RequestTimeout, sources.RetryPolicy{
		MaxAttempts:       cfg.Collection.MaxAttempts,
		InitialDelay:      cfg.Collection.RetryDelay,
		MaxDelay:          cfg.Collection.RetryMaxDelay,
		BackoffMultiplier: cfg.Collection.RetryBackoff,
	}, logger)
	registry := sources.BuildRegistry(catalog.Sources, client, logger)
	logger.WithFields(logrus.Fields{
		"sources": registry.Len(),
		"skipped": registry.Skipped(),
	}).Info("Source registry ready")

	cls := classifier.New(classifier.Config{
		Tags:          catalog.ClassifierTags(),
		SouthKeywords: catalog.SouthKeywords,
		Blacklist:     catalog.Blacklist,
		Geo:           catalog.GeoFilter(),
		Matcher: textmatch.Matcher{
			TokenThreshold:  cfg.Matching.TokenThreshold,
			PhraseThreshold: cfg.Matching.PhraseThreshold,
		},
	}, logger)

	gate := limits.NewGate(limits.NewStore(), catalog.Thresholds())

	dispatcher := notify.NewDispatcher(notify.Config{
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
		Pacing:    cfg.Telegram.Pacing,
		BatchSize: cfg.Telegram.BatchSize,
	}, logger)
	if !dispatcher.Configured() {
		logger.Warn("Telegram transport not configured, notifications go to the log only")
	}

	var exporter *export.Writer
	if cfg.Export.Enabled {
		exporter = export.NewWriter(cfg.Export.OutputDir, logger)
	}

	orch := orchestrator.New(registry, cls, gate, store, dispatcher, exporter, orchestrator.Config{
		MaxPagesPerSource: cfg.Collection.MaxPagesPerSource,
		SourceConcurrency: cfg.Collection.SourceConcurrency,
		PoliteDelay:       cfg.Collection.PoliteDelay,
	}, logger)

	sched := scheduler.New(orch.RunCycle, cfg.Collection.Interval, cfg.Collection.Warmup, logger)
	sched.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	api.SetupRoutes(router, api.NewHandler(orch, gate, store, logger))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	// Let an in-flight cycle finish before closing the listener.
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}
