// Package main provides the background worker entry point. It runs the job
// queues and the recurring sync scheduler.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/config"
	"github.com/campus-sync/internal/job"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/retry"
	"github.com/campus-sync/internal/storage"
	"github.com/campus-sync/internal/sync"
	"github.com/campus-sync/internal/vault"
)

func main() {
	sweepNow := flag.Bool("sweep-now", false, "Run one sync sweep immediately at startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")

	// Tolerate the database coming up after us
	var postgres *storage.PostgresDB
	if err := retry.WithRetry(context.Background(), func(ctx context.Context, attempt int) error {
		var err error
		postgres, err = storage.NewPostgresDB(&cfg.Database.Postgres)
		return err
	}); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	credentialVault, err := vault.New(cfg.Vault.EncryptionKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize credential vault")
	}

	accountRepo := storage.NewAccountRepository(postgres)
	collegeRepo := storage.NewCollegeRepository(postgres)
	syncLogRepo := storage.NewSyncLogRepository(postgres)
	attendanceRepo := storage.NewAttendanceRepository(postgres)
	timetableRepo := storage.NewTimetableRepository(postgres)
	markRepo := storage.NewMarkRepository(postgres)
	courseRepo := storage.NewCourseRepository(postgres)
	profileRepo := storage.NewProfileRepository(postgres)
	notificationRepo := storage.NewNotificationRepository(postgres)

	cacheService := storage.NewCacheService(redis, &cfg.Cache)

	registry := adapter.NewRegistry()
	if cfg.Portal.MyCampusBaseURL != "" {
		myCampus, err := adapter.NewMyCampusAdapter(&adapter.MyCampusConfig{
			AdapterID:         "mycampus",
			BaseURL:           cfg.Portal.MyCampusBaseURL,
			Origin:            cfg.Portal.MyCampusOrigin,
			RequestsPerSecond: cfg.Portal.RequestsPerSec,
			Timeout:           cfg.Portal.RequestTimeout,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MyCampus adapter")
		}
		if err := registry.Register(myCampus); err != nil {
			logger.WithError(err).Fatal("Failed to register MyCampus adapter")
		}
	}
	logger.WithField("adapters", registry.IDs()).Info("Portal adapters registered")

	upserter := sync.NewUpserter(attendanceRepo, timetableRepo, markRepo, courseRepo, profileRepo)
	coordinator := sync.NewCoordinator(accountRepo, syncLogRepo, collegeRepo, registry, credentialVault, upserter, cacheService)
	escalator := sync.NewEscalator(accountRepo, syncLogRepo, cfg.Sync.FailureThreshold)
	notifier := sync.NewAttendanceNotifier(accountRepo, collegeRepo, attendanceRepo, notificationRepo, cacheService)

	syncService := job.NewSyncService(coordinator, escalator, notifier, &cfg.Sync)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncService.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start job queues")
	}

	scheduler := job.NewScheduler(accountRepo, syncService, cfg.Sync.ScheduleInterval)
	scheduler.Start(ctx)

	logger.WithFields(map[string]interface{}{
		"syncWorkers":         cfg.Sync.SyncWorkers,
		"notificationWorkers": cfg.Sync.NotificationWorkers,
		"scheduleInterval":    cfg.Sync.ScheduleInterval.String(),
	}).Info("Worker started")

	if *sweepNow {
		scheduler.Sweep(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	scheduler.Stop()
	if err := syncService.Stop(); err != nil {
		logger.WithError(err).Error("Queue shutdown failed")
	}

	logger.Info("Shutdown complete")
}
