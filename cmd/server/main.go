// Package main provides the API server entry point for the campus sync service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/api"
	"github.com/campus-sync/internal/config"
	"github.com/campus-sync/internal/job"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/retry"
	"github.com/campus-sync/internal/storage"
	"github.com/campus-sync/internal/sync"
	"github.com/campus-sync/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	// Initialize database connections
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

	logger.Info("Database connections established")

	// Credential vault
	credentialVault, err := vault.New(cfg.Vault.EncryptionKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize credential vault")
	}

	// Repositories
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

	// Portal adapters
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

	// Sync pipeline
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

	// HTTP server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		api.Repositories{
			Accounts:      accountRepo,
			Colleges:      collegeRepo,
			SyncLogs:      syncLogRepo,
			Attendance:    attendanceRepo,
			Timetable:     timetableRepo,
			Marks:         markRepo,
			Courses:       courseRepo,
			Profiles:      profileRepo,
			Notifications: notificationRepo,
		},
		cacheService,
		credentialVault,
		registry,
		syncService,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Error("Server stopped")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := syncService.Stop(); err != nil {
		logger.WithError(err).Error("Queue shutdown failed")
	}

	logger.Info("Shutdown complete")
}
