// Package app wires configuration into the repositories, engine client and
// services shared by the API server and the reconcile CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/repository"
	"github.com/timmy/sourcedesk/internal/service"
	"github.com/timmy/sourcedesk/internal/storage"
)

// App holds the wired components.
type App struct {
	DB         *sql.DB
	Sources    *repository.SourceRepository
	Contents   *repository.ContentRepository
	Reconciler *jobs.Reconciler

	SourceService  *service.SourceService
	ContentService *service.ContentService
	ChatService    *service.ChatService
	Research       *service.ResearchService

	SourcePolls  *jobs.Scheduler
	ContentPolls *jobs.Scheduler

	closers []func() error
}

// New builds every component cfg enables. Optional integrations (storage,
// Qdrant, Gemini, CDN signing) are skipped with a warning when not configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)

	if err := cfg.Diaflow.Validate(); err != nil {
		return nil, err
	}
	builders, err := diaflow.ParseBuilders(cfg.Diaflow.Builders)
	if err != nil {
		return nil, err
	}
	for _, kind := range []domain.JobKind{domain.JobKindSourceTranscribe, domain.JobKindTextGenerate, domain.JobKindImageGenerate} {
		if _, ok := builders[kind]; !ok {
			log.WithField(logger.FieldJobKind, kind).Warn("No builder configured, submissions of this kind will fail")
		}
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	a := &App{
		DB:       sqlDB,
		Sources:  repository.NewSourceRepository(db),
		Contents: repository.NewContentRepository(db),
	}
	a.closers = append(a.closers, sqlDB.Close)

	client := diaflow.NewClient(&diaflow.Config{
		BaseURL:  cfg.Diaflow.BaseURL,
		APIKey:   cfg.Diaflow.APIKey,
		Builders: builders,
		Timeout:  cfg.Diaflow.Timeout,
	})

	var signer jobs.URLSigner
	if cfg.CDN.Configured() {
		cdn, err := storage.NewCDNSigner(&cfg.CDN)
		if err != nil {
			a.Close()
			return nil, err
		}
		signer = cdn
	} else {
		log.Warn("CDN signing not configured, image generation disabled")
	}
	a.Reconciler = jobs.NewReconciler(client, signer)

	deps := service.SourceServiceDeps{
		Inspector: service.NewHTMLInspector(0),
	}

	if cfg.Storage.Enabled() {
		objectStorage, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
		deps.Storage = objectStorage
	} else {
		log.Warn("Object storage not configured, uploads disabled")
	}

	var gemini *service.GeminiService
	if cfg.Gemini.APIKey != "" {
		gemini, err = service.NewGeminiService(ctx, &cfg.Gemini)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Warn("Gemini not configured, chat disabled")
	}

	var index service.SourceIndex
	if cfg.Qdrant.Enabled && gemini != nil {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Gemini.EmbedDimension,
			MinScore:        cfg.Qdrant.MinScore,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
		}
		a.closers = append(a.closers, qdrantRepo.Close)

		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		index = qdrantRepo
		deps.Index = qdrantRepo
		deps.Embedder = gemini
	}

	a.SourceService = service.NewSourceService(a.Sources, client, a.Reconciler, log, deps)
	a.ContentService = service.NewContentService(a.Contents, a.Sources, client, a.Reconciler, service.ContentServiceConfig{
		ImagesEnabled: signer != nil,
		Prober:        service.NewHTTPImageProber(0),
	})
	if gemini != nil {
		var embedder service.Embedder
		if index != nil {
			embedder = gemini
		}
		a.ChatService = service.NewChatService(a.Sources, gemini, embedder, index)
	}
	if cfg.Research.BaseURL != "" {
		a.Research = service.NewResearchService(&cfg.Research)
	}

	return a, nil
}

// StartPolling attaches schedulers to the services. OnTerminal and OnError
// are logged through the default logger.
func (a *App) StartPolling(cfg *config.PollingConfig) {
	newScheduler := func(name string, tracker jobs.Tracker) *jobs.Scheduler {
		s := jobs.NewScheduler(tracker, jobs.SchedulerConfig{
			Name:          name,
			Interval:      cfg.Interval,
			Timeout:       cfg.Timeout,
			MaxConcurrent: cfg.MaxConcurrent,
			RatePerSecond: cfg.RatePerSecond,
		})
		log := logger.GetDefault().WithField(logger.FieldComponent, name)
		s.OnTerminal = func(id string, status domain.ProcessingStatus) {
			log.WithFields(logger.Fields{
				logger.FieldEntityID: id,
				logger.FieldStatus:   status,
			}).Info("Polling finished")
		}
		s.OnError = func(id string, err error) {
			log.WithField(logger.FieldEntityID, id).WithError(err).Warn("Polling stopped on status check failure")
		}
		return s
	}

	a.SourcePolls = newScheduler("source-poller", a.SourceService.Tracker())
	a.ContentPolls = newScheduler("content-poller", a.ContentService.Tracker())
	a.SourceService.UsePoller(a.SourcePolls)
	a.ContentService.UsePoller(a.ContentPolls)
}

// StopPolling cancels every poll and waits for in-flight ticks.
func (a *App) StopPolling() {
	if a.SourcePolls != nil {
		a.SourcePolls.StopAll()
	}
	if a.ContentPolls != nil {
		a.ContentPolls.StopAll()
	}
}

// Close releases database and index connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.GetDefault().WithError(err).Warn("Close failed")
		}
	}
}
