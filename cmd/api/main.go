package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/lgsf-dashboard/logbooks/internal/api"
	"github.com/lgsf-dashboard/logbooks/internal/config"
	"github.com/lgsf-dashboard/logbooks/internal/logging"
	"github.com/lgsf-dashboard/logbooks/internal/storage"
	"github.com/lgsf-dashboard/logbooks/internal/storage/postgres"
	"github.com/lgsf-dashboard/logbooks/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateStorage(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize storage; the API serves from the archive, so sqlite is the
	// fallback when none is configured
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			logger.Fatal("Failed to initialize PostgreSQL storage", zap.Error(err))
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("Failed to initialize SQLite storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)

	// Setup routes
	router := api.SetupRoutes(handler, logger)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("Starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageType))

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
