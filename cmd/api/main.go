// Package main provides the plagcode ingress API service.
//
// The API stages uploads in the object store, records scans in PostgreSQL,
// and publishes the code.submitted event that starts the scoring pipeline.
// It never computes similarity itself.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/plagcode-io/plagcode/internal/api"
	"github.com/plagcode-io/plagcode/internal/api/middleware"
	"github.com/plagcode-io/plagcode/internal/blobstore"
	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/ingress"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "plagcode-api"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting plagcode API service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Load rate limiter configuration
	middlewareConfig := middleware.LoadConfig()

	// Create rate limiter instance (graceful shutdown handled by server.shutdown())
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("global_burst", middlewareConfig.GlobalBurst),
		slog.Int("client_rps", middlewareConfig.ClientRPS),
		slog.Int("client_burst", middlewareConfig.ClientBurst),
	)

	// Load storage configuration
	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close() // Ensure connection closes on normal shutdown
	}()

	store, err := storage.NewStore(dbConn)
	if err != nil {
		logger.Error("Failed to create store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	logger.Info("Store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
	)

	blobConfig := blobstore.LoadConfig()

	blobs, err := blobstore.New(blobConfig)
	if err != nil {
		logger.Error("Failed to create object store client", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	ctx := context.Background()

	if err := blobs.EnsureBucket(ctx, blobConfig.Bucket); err != nil {
		logger.Error("Failed to ensure upload bucket",
			slog.String("bucket", blobConfig.Bucket),
			slog.String("error", err.Error()),
		)

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("Object store initialized", slog.String("bucket", blobConfig.Bucket))

	busConfig := bus.LoadConfig()
	if err := busConfig.Validate(); err != nil {
		logger.Error("Invalid bus configuration", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	producer, err := bus.NewProducer(ctx, busConfig)
	if err != nil {
		logger.Error("Failed to connect to message bus", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	defer func() {
		_ = producer.Close()
	}()

	languages, err := ingress.LoadLanguageConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load language configuration", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	intake := ingress.NewService(
		store,
		blobs,
		producer,
		busConfig.Topics,
		blobConfig.Bucket,
		languages,
		logger,
	)

	server := api.NewServer(serverConfig, store, intake, blobs, blobConfig.Bucket, rateLimiter)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("plagcode API service stopped")
}
