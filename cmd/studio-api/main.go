package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cert-studio/studio-backend/internal/config"
	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/internal/templates"
	"cert-studio/studio-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx := context.Background()

	var store jobs.ArchiveStore
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Prefix:          cfg.Storage.Prefix,
			PresignExpiry:   cfg.Storage.PresignExpiry,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to configure archive storage", zap.Error(err))
		}
		store = s3Store
		logger.Info("Archive delivery enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	manager := jobs.NewManager(logger, jobs.Options{Retention: cfg.Jobs.Retention, Store: store})
	if err := manager.Start(cfg.Jobs.PurgeSpec); err != nil {
		logger.Fatal("Failed to start job purge", zap.Error(err))
	}

	var templateRepo templates.Repository
	if cfg.Database.Enabled() {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := templates.Migrate(db); err != nil {
			logger.Fatal("Failed to migrate templates", zap.Error(err))
		}
		templateRepo = templates.NewRepository(db)
	} else {
		logger.Warn("No database configured, template routes disabled")
	}

	router := newRouter(cfg, logger, manager, templateRepo)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Jobs did not stop cleanly", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}
