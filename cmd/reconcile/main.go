package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/sourcedesk/internal/app"
	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "sourcedesk-reconcile",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	kind := flag.String("kind", "all", "Entities to reconcile: sources, contents or all")
	id := flag.String("id", "", "Reconcile a single entity id")
	workers := flag.Int("workers", 4, "Concurrent status checks")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	switch *kind {
	case "sources", "contents", "all":
	default:
		appLogger.WithField("kind", *kind).Fatal("Unknown kind")
	}
	if *id != "" && *kind == "all" {
		appLogger.Fatal("-id requires -kind sources or -kind contents")
	}

	// Load configuration
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

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	passes := []struct {
		name string
		pass *service.ReconcilePass
	}{
		{"sources", service.NewReconcilePass(a.SourceService.Tracker(), a.Sources, *workers)},
		{"contents", service.NewReconcilePass(a.ContentService.Tracker(), a.Contents, *workers)},
	}

	var ids []string
	if *id != "" {
		ids = []string{*id}
	}

	failed := false
	for _, p := range passes {
		if *kind != "all" && *kind != p.name {
			continue
		}

		stats, err := p.pass.Run(ctx, ids...)
		if err != nil {
			appLogger.WithError(err).WithField("kind", p.name).Error("Reconcile pass failed")
			failed = true
			continue
		}
		appLogger.WithFields(logger.Fields{
			"kind":      p.name,
			"checked":   stats.Checked,
			"completed": stats.Completed,
			"failed":    stats.Failed,
			"pending":   stats.Pending,
			"errors":    stats.Errors,
		}).Info("Reconcile completed")
		if stats.Errors > 0 {
			failed = true
		}
	}

	if failed {
		a.Close()
		os.Exit(1)
	}
}
