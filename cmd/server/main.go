package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ridesharing-adapter/internal/config"
	"github.com/example/ridesharing-adapter/internal/events"
	httpapi "github.com/example/ridesharing-adapter/internal/http"
	"github.com/example/ridesharing-adapter/internal/logging"
	"github.com/example/ridesharing-adapter/internal/models"
	"github.com/example/ridesharing-adapter/internal/provider"
	"github.com/example/ridesharing-adapter/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// optional migration: run migrations/001_create_ridesharing_searches.sql if requested
	if cfg.PGDSN != "" && cfg.RunMigrations {
		if db, err := sql.Open("postgres", cfg.PGDSN); err == nil {
			if b, err := os.ReadFile(filepath.Join("migrations", "001_create_ridesharing_searches.sql")); err == nil {
				if _, err := db.Exec(string(b)); err != nil {
					logger.Error("migration exec error", "error", err)
				} else {
					logger.Info("migration applied", "file", "001_create_ridesharing_searches.sql")
				}
			}
			_ = db.Close()
		} else {
			logger.Error("migration db open error", "error", err)
		}
	}

	var searchLog storage.SearchLog
	if cfg.PGDSN != "" {
		if pg, err := storage.NewPostgresLog(cfg.PGDSN); err == nil {
			searchLog = pg
		} else {
			logger.Warn("postgres audit log unavailable, using in-memory log", "error", err)
		}
	}
	if searchLog == nil {
		searchLog = storage.NewMemoryLog()
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	adapter := provider.NewKaros(karosConfig(cfg), logger, publisher)
	srv := httpapi.NewServer(adapter, searchLog, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ridesharing adapter listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func karosConfig(cfg config.ServerConfig) provider.Config {
	pc := provider.Config{
		ServiceURL:          cfg.KarosServiceURL,
		APIKey:              cfg.KarosAPIKey,
		Network:             cfg.KarosNetwork,
		TimeDelta:           cfg.KarosTimeDelta,
		Timeout:             cfg.KarosTimeout,
		DepartureRadius:     cfg.DepartureRadius,
		ArrivalRadius:       cfg.ArrivalRadius,
		RatingScaleMin:      cfg.RatingScaleMin,
		RatingScaleMax:      cfg.RatingScaleMax,
		BreakerFailMax:      uint32(cfg.BreakerFailMax),
		BreakerResetTimeout: cfg.BreakerResetTimeout,
	}
	switch cfg.FeedPublisherID {
	case "":
		// keep the provider default
	case "none":
		pc.DisableFeedPublisher = true
	default:
		pc.FeedPublisher = &models.FeedPublisher{
			ID:      cfg.FeedPublisherID,
			Name:    cfg.FeedPublisherName,
			License: cfg.FeedPublisherLicense,
			URL:     cfg.FeedPublisherURL,
		}
	}
	return pc
}
