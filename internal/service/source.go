package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/repository"
	"github.com/timmy/sourcedesk/internal/storage"
)

// SourceIndex stores source vectors for retrieval.
type SourceIndex interface {
	Upsert(ctx context.Context, pointID string, vector []float32, payload *repository.SourcePayload) error
	Search(ctx context.Context, vector []float32, topK int, linkType string) ([]repository.SearchResult, error)
	Delete(ctx context.Context, pointID string) error
}

// SourceService manages sources and their transcription jobs.
type SourceService struct {
	repo       *repository.SourceRepository
	submitter  Submitter
	reconciler StatusReconciler
	poller     Poller
	storage    storage.ObjectStorage
	index      SourceIndex
	embedder   Embedder
	inspector  PageInspector
	logger     *logger.Logger
}

// SourceServiceDeps holds the optional collaborators of SourceService.
// Nil fields disable the feature that needs them.
type SourceServiceDeps struct {
	Storage   storage.ObjectStorage
	Index     SourceIndex
	Embedder  Embedder
	Inspector PageInspector
}

// NewSourceService creates a new source service.
func NewSourceService(
	repo *repository.SourceRepository,
	submitter Submitter,
	reconciler StatusReconciler,
	log *logger.Logger,
	deps SourceServiceDeps,
) *SourceService {
	return &SourceService{
		repo:       repo,
		submitter:  submitter,
		reconciler: reconciler,
		storage:    deps.Storage,
		index:      deps.Index,
		embedder:   deps.Embedder,
		inspector:  deps.Inspector,
		logger:     log,
	}
}

// UsePoller attaches the scheduler that polls submitted sources.
func (s *SourceService) UsePoller(p Poller) {
	s.poller = p
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *SourceService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// AddSourceRequest is the input of AddSource.
type AddSourceRequest struct {
	Link     string          `json:"link" binding:"required"`
	LinkType domain.LinkType `json:"type_of_link" binding:"required"`
	Title    string          `json:"title"`
}

// AddSource creates a source and submits it for transcription.
// When the submission fails the source is still returned, persisted as
// failed, together with the submission error.
func (s *SourceService) AddSource(ctx context.Context, req *AddSourceRequest) (*domain.Source, error) {
	link := strings.TrimSpace(req.Link)
	if err := validateLink(link); err != nil {
		return nil, err
	}
	if !req.LinkType.Valid() {
		return nil, invalidInput("unknown link type %q", req.LinkType)
	}

	src := &domain.Source{
		ID:               uuid.New().String(),
		Title:            strings.TrimSpace(req.Title),
		Link:             link,
		LinkType:         req.LinkType,
		ProcessingStatus: domain.ProcessingStatusPending,
	}

	if src.LinkType == domain.LinkTypeWeb && s.inspector != nil {
		s.applyPageMetadata(ctx, src)
	}

	return s.create(ctx, src)
}

// UploadSource stores an uploaded file and submits its public URL.
func (s *SourceService) UploadSource(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.Source, error) {
	if s.storage == nil {
		return nil, &diaflow.ConfigurationError{Field: "storage"}
	}
	if size <= 0 {
		return nil, invalidInput("empty upload")
	}

	id := uuid.New().String()
	key := storage.UploadKey(id, filename)
	if err := s.storage.Upload(ctx, key, body, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	src := &domain.Source{
		ID:               id,
		Title:            filename,
		Link:             s.storage.GetURL(key),
		LinkType:         linkTypeForUpload(contentType),
		StorageKey:       key,
		ProcessingStatus: domain.ProcessingStatusPending,
	}
	return s.create(ctx, src)
}

func (s *SourceService) create(ctx context.Context, src *domain.Source) (*domain.Source, error) {
	ctx = logger.SetJob(ctx, src.ID, "", string(domain.JobKindSourceTranscribe))

	if err := s.repo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	_, subErr := submitJob(ctx, s.submitter, s.repo, src.ID, domain.JobKindSourceTranscribe, diaflow.TranscribeRequest{
		Link:       src.Link,
		TypeOfLink: string(src.LinkType),
	})

	saved, err := s.repo.GetByID(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if subErr != nil {
		return saved, subErr
	}

	if s.poller != nil {
		s.poller.Start(saved.ID)
	}
	return saved, nil
}

// CheckStatus reconciles a source with the engine and returns its current state.
// Terminal sources and sources without a session are returned without
// contacting the engine. A failed status check leaves the source unchanged.
func (s *SourceService) CheckStatus(ctx context.Context, id string) (*domain.Source, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	job := src.Job()
	if !job.Pollable() {
		return src, nil
	}
	ctx = logger.SetJob(ctx, src.ID, *job.SessionID, string(job.Kind))

	rec, err := s.reconciler.Reconcile(ctx, job.Kind, *job.SessionID)
	if err != nil {
		return nil, err
	}

	done, err := applyReconciliation(ctx, s.repo, src.ID, rec, map[string]any{
		"transcript": rec.Result.Transcript,
		"summary":    rec.Result.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist source status: %w", err)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if done && updated.ProcessingStatus == domain.ProcessingStatusCompleted {
		s.indexSource(ctx, updated)
	}
	return updated, nil
}

// Get returns a source by id.
func (s *SourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns sources matching filter.
func (s *SourceService) List(ctx context.Context, filter repository.SourceFilter) ([]domain.Source, error) {
	return s.repo.List(ctx, filter)
}

// ListProcessing returns the ids of sources waiting on the engine.
func (s *SourceService) ListProcessing(ctx context.Context) ([]string, error) {
	return s.repo.ListPollable(ctx)
}

// ResumePolling restarts polling for every processing source.
func (s *SourceService) ResumePolling(ctx context.Context) (int, error) {
	if s.poller == nil {
		return 0, nil
	}
	return s.poller.Resume(ctx, s.repo)
}

// Delete stops polling for a source and removes it with its upload and vector.
func (s *SourceService) Delete(ctx context.Context, id string) error {
	if s.poller != nil {
		s.poller.Stop(id)
	}

	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if src.StorageKey != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, src.StorageKey); err != nil {
			s.log(ctx).WithError(err).WithField("key", src.StorageKey).Warn("Failed to delete uploaded file")
		}
	}
	if s.index != nil && src.ProcessingStatus == domain.ProcessingStatusCompleted {
		if err := s.index.Delete(ctx, id); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to delete source vector")
		}
	}
	return nil
}

// Tracker returns the scheduler view of the service.
func (s *SourceService) Tracker() jobs.Tracker {
	return sourceTracker{s}
}

// indexSource embeds a completed source for retrieval. Failures only log.
func (s *SourceService) indexSource(ctx context.Context, src *domain.Source) {
	if s.index == nil || s.embedder == nil {
		return
	}
	text := strings.TrimSpace(src.Title + "\n" + src.ContextText())
	if text == "" {
		return
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to embed source")
		return
	}
	if err := s.index.Upsert(ctx, src.ID, vector, &repository.SourcePayload{
		SourceID: src.ID,
		Title:    src.Title,
		LinkType: string(src.LinkType),
		Link:     src.Link,
	}); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to index source")
	}
}

func (s *SourceService) applyPageMetadata(ctx context.Context, src *domain.Source) {
	meta, err := s.inspector.Inspect(ctx, src.Link)
	if err != nil {
		s.log(ctx).WithError(err).Debug("Page metadata unavailable")
		return
	}
	if src.Title == "" {
		src.Title = meta.Title
	}
	src.Description = meta.Description
}

func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidInput("link must be an absolute http(s) URL")
	}
	return nil
}

func linkTypeForUpload(contentType string) domain.LinkType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return domain.LinkTypeDocument
	}
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		return domain.LinkTypeAudio
	case strings.HasPrefix(mediaType, "video/"):
		return domain.LinkTypeVideo
	default:
		return domain.LinkTypeDocument
	}
}

// sourceTracker adapts SourceService to jobs.Tracker.
type sourceTracker struct {
	s *SourceService
}

func (t sourceTracker) State(ctx context.Context, id string) (domain.JobState, error) {
	return t.s.repo.GetJobState(ctx, id)
}

func (t sourceTracker) Refresh(ctx context.Context, id string) (domain.ProcessingStatus, error) {
	src, err := t.s.CheckStatus(ctx, id)
	if err != nil {
		return "", err
	}
	return src.ProcessingStatus, nil
}

func (t sourceTracker) Fail(ctx context.Context, id string, cause error) error {
	return failJob(ctx, t.s.repo, id, cause)
}
