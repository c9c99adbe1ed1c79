// Package main provides the plagcode scoring worker.
//
// The worker consumes code.candidates events, computes Jaccard similarity
// over cached token sets, persists one result per pair, and drives the scan
// to its terminal DONE state with a single code.scored emission.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/cache"
	"github.com/plagcode-io/plagcode/internal/storage"
	"github.com/plagcode-io/plagcode/internal/worker"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "plagcode-scorer"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Starting plagcode scoring worker",
		slog.String("service", name),
		slog.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close()
	}()

	store, err := storage.NewStore(dbConn)
	if err != nil {
		logger.Error("Failed to create store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	cacheConfig := cache.LoadConfig()

	tokenCache, err := cache.New(cacheConfig.URL)
	if err != nil {
		logger.Error("Failed to connect to cache", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	defer func() {
		_ = tokenCache.Close()
	}()

	busConfig := bus.LoadConfig()

	consumer, err := bus.NewConsumer(ctx, busConfig, busConfig.Topics.Candidates)
	if err != nil {
		logger.Error("Failed to create consumer", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	defer func() {
		_ = consumer.Close()
	}()

	producer, err := bus.NewProducer(ctx, busConfig)
	if err != nil {
		logger.Error("Failed to create producer", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	defer func() {
		_ = producer.Close()
	}()

	handler := worker.NewScorer(tokenCache, producer, busConfig.Topics)

	w := worker.New(consumer, producer, store, busConfig.Topics, busConfig.Topics.Candidates, handler)

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("plagcode scoring worker stopped")
}
