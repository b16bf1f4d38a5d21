package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/sourcedesk/internal/app"
	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/importer"
	"github.com/timmy/sourcedesk/internal/importer/manifest"
	"github.com/timmy/sourcedesk/internal/logger"
)

// Imported sources are left processing; the API server's resume sweep
// picks them up for polling.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "sourcedesk-import",
	})
	logger.SetDefaultLogger(appLogger)

	manifestPath := flag.String("manifest", "", "Path to a JSONL manifest of links")
	limit := flag.Int("limit", 0, "Maximum number of links to import (0 = all)")
	batchSize := flag.Int("batch", 50, "Manifest items read per batch")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *manifestPath == "" {
		appLogger.Fatal("-manifest is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	feed := manifest.NewAdapter(*manifestPath)
	stats, err := importer.New(a.SourceService, *batchSize).Run(ctx, feed, *limit)
	if err != nil {
		appLogger.WithError(err).Error("Import aborted")
		a.Close()
		os.Exit(1)
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"submitted": stats.SubmittedItems,
		"rejected":  stats.RejectedItems,
		"failed":    stats.FailedItems,
		"skipped":   feed.Skipped(),
	}).Info("Import finished")
}
