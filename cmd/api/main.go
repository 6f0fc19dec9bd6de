package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/everlastingflames/flood-monitoring/internal/config"
	"github.com/everlastingflames/flood-monitoring/internal/db"
	httpserver "github.com/everlastingflames/flood-monitoring/internal/http"
	"github.com/everlastingflames/flood-monitoring/internal/imgw"
	"github.com/everlastingflames/flood-monitoring/internal/logging"
	"github.com/everlastingflames/flood-monitoring/internal/observability"
	syncsvc "github.com/everlastingflames/flood-monitoring/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection error", zap.Error(err))
	}
	defer store.Close()

	client := imgw.NewClient(cfg.HydroURL, cfg.WarningsURL, cfg.RequestTimeout)
	parser := imgw.NewTimestampParser(clockwork.NewRealClock(), logger)
	metrics := observability.NewMetrics()
	syncer := syncsvc.NewService(client, store, parser, metrics, logger)

	if cfg.SyncSchedule != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.SyncSchedule, func() {
			syncer.RunBackground("scheduled-sync", 30*time.Minute, func(ctx context.Context) error {
				if _, err := syncer.SyncAll(ctx, cfg.DefaultDays); err != nil {
					return err
				}
				_, err := syncer.SyncWarnings(ctx)
				return err
			})
		})
		if err != nil {
			logger.Fatal("invalid SYNC_SCHEDULE", zap.String("schedule", cfg.SyncSchedule), zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("scheduled sync enabled", zap.String("schedule", cfg.SyncSchedule))
	}

	srv := httpserver.New(cfg, store, syncer, client, logger)
	logger.Info("REST API listening", zap.String("addr", cfg.ListenAddr()))

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
