package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/prompts"
	"github.com/timmy/sourcedesk/internal/repository"
)

// ContentService manages generated content and its generation jobs.
type ContentService struct {
	repo          *repository.ContentRepository
	sources       *repository.SourceRepository
	submitter     Submitter
	reconciler    StatusReconciler
	poller        Poller
	prober        ImageProber
	imagesEnabled bool
}

// ContentServiceConfig holds configuration for ContentService.
type ContentServiceConfig struct {
	// ImagesEnabled is false when image URLs cannot be signed.
	ImagesEnabled bool
	Prober        ImageProber
}

// NewContentService creates a new content service.
func NewContentService(
	repo *repository.ContentRepository,
	sources *repository.SourceRepository,
	submitter Submitter,
	reconciler StatusReconciler,
	cfg ContentServiceConfig,
) *ContentService {
	return &ContentService{
		repo:          repo,
		sources:       sources,
		submitter:     submitter,
		reconciler:    reconciler,
		prober:        cfg.Prober,
		imagesEnabled: cfg.ImagesEnabled,
	}
}

// UsePoller attaches the scheduler that polls generation jobs.
func (s *ContentService) UsePoller(p Poller) {
	s.poller = p
}

// GenerateRequest is the input of GenerateText and GenerateImage.
type GenerateRequest struct {
	SourceID string `json:"source_id"`
	Format   string `json:"format" binding:"required"`
	Prompt   string `json:"prompt"`
}

// GenerateText starts a text-generation job.
// When the submission fails the item is still returned, persisted as failed.
func (s *ContentService) GenerateText(ctx context.Context, req *GenerateRequest) (*domain.GeneratedContent, error) {
	if _, ok := prompts.TextFormats[req.Format]; !ok {
		return nil, invalidInput("unknown text format %q (supported: %s)", req.Format, strings.Join(prompts.FormatNames(prompts.TextFormats), ", "))
	}

	sourceText, err := s.sourceContext(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, domain.ContentTypeText, req, prompts.BuildTextPrompt(req.Format, req.Prompt, sourceText))
}

// GenerateImage starts an image-generation job.
// It fails with a *diaflow.ConfigurationError when image URLs cannot be signed.
func (s *ContentService) GenerateImage(ctx context.Context, req *GenerateRequest) (*domain.GeneratedContent, error) {
	if !s.imagesEnabled {
		return nil, &diaflow.ConfigurationError{Field: "cdn"}
	}
	if _, ok := prompts.ImageFormats[req.Format]; !ok {
		return nil, invalidInput("unknown image format %q (supported: %s)", req.Format, strings.Join(prompts.FormatNames(prompts.ImageFormats), ", "))
	}

	sourceText, err := s.sourceContext(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, domain.ContentTypeImage, req, prompts.BuildImagePrompt(req.Format, req.Prompt, sourceText))
}

func (s *ContentService) sourceContext(ctx context.Context, sourceID string) (string, error) {
	if sourceID == "" {
		return "", nil
	}
	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", invalidInput("source %s does not exist", sourceID)
		}
		return "", err
	}
	return src.ContextText(), nil
}

func (s *ContentService) generate(ctx context.Context, contentType domain.ContentType, req *GenerateRequest, prompt string) (*domain.GeneratedContent, error) {
	item := &domain.GeneratedContent{
		ID:               uuid.New().String(),
		SourceID:         req.SourceID,
		Type:             contentType,
		Format:           req.Format,
		Prompt:           req.Prompt,
		ProcessingStatus: domain.ProcessingStatusPending,
		ComplianceStatus: domain.ComplianceStatusDraft,
	}
	kind := contentType.JobKind()
	ctx = logger.SetJob(ctx, item.ID, "", string(kind))

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}

	_, subErr := submitJob(ctx, s.submitter, s.repo, item.ID, kind, diaflow.PromptRequest{Prompt: prompt})

	saved, err := s.repo.GetByID(ctx, item.ID)
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

// CheckStatus reconciles a content item with the engine and returns its current state.
func (s *ContentService) CheckStatus(ctx context.Context, id string) (*domain.GeneratedContent, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	job := item.Job()
	if !job.Pollable() {
		return item, nil
	}
	ctx = logger.SetJob(ctx, item.ID, *job.SessionID, string(job.Kind))

	rec, err := s.reconciler.Reconcile(ctx, job.Kind, *job.SessionID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if item.Type == domain.ContentTypeImage {
		fields["url"] = rec.URL
	} else {
		fields["content"] = rec.Result.Content
	}

	done, err := applyReconciliation(ctx, s.repo, item.ID, rec, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to persist content status: %w", err)
	}

	if done && rec.Status == domain.ProcessingStatusCompleted && rec.URL != nil && s.prober != nil {
		s.probeDimensions(ctx, item.ID, *rec.URL)
	}

	return s.repo.GetByID(ctx, id)
}

func (s *ContentService) probeDimensions(ctx context.Context, id, url string) {
	width, height, err := s.prober.Dimensions(ctx, url)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to probe image dimensions")
		return
	}
	if err := s.repo.UpdateDimensions(ctx, id, width, height); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to store image dimensions")
	}
}

// MoveCompliance moves a completed item to another board column.
func (s *ContentService) MoveCompliance(ctx context.Context, id string, to domain.ComplianceStatus) (*domain.GeneratedContent, error) {
	if !to.Valid() {
		return nil, invalidInput("unknown compliance status %q", to)
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ProcessingStatus != domain.ProcessingStatusCompleted {
		return nil, fmt.Errorf("%w: content is %s", domain.ErrInvalidTransition, item.ProcessingStatus)
	}
	if !item.ComplianceStatus.CanMoveTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, item.ComplianceStatus, to)
	}

	ok, err := s.repo.UpdateCompliance(ctx, id, item.ComplianceStatus, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: content was moved concurrently", domain.ErrInvalidTransition)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldEntityID: id,
		"from":               item.ComplianceStatus,
		"to":                 to,
	}).Info("Compliance status changed")
	return s.repo.GetByID(ctx, id)
}

// Get returns a content item by id.
func (s *ContentService) Get(ctx context.Context, id string) (*domain.GeneratedContent, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns content items matching filter.
func (s *ContentService) List(ctx context.Context, filter repository.ContentFilter) ([]domain.GeneratedContent, error) {
	return s.repo.List(ctx, filter)
}

// ResumePolling restarts polling for every processing item.
func (s *ContentService) ResumePolling(ctx context.Context) (int, error) {
	if s.poller == nil {
		return 0, nil
	}
	return s.poller.Resume(ctx, s.repo)
}

// Delete stops polling for an item and removes it.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if s.poller != nil {
		s.poller.Stop(id)
	}
	return s.repo.Delete(ctx, id)
}

// Tracker returns the scheduler view of the service.
func (s *ContentService) Tracker() jobs.Tracker {
	return contentTracker{s}
}

// contentTracker adapts ContentService to jobs.Tracker.
type contentTracker struct {
	s *ContentService
}

func (t contentTracker) State(ctx context.Context, id string) (domain.JobState, error) {
	return t.s.repo.GetJobState(ctx, id)
}

func (t contentTracker) Refresh(ctx context.Context, id string) (domain.ProcessingStatus, error) {
	item, err := t.s.CheckStatus(ctx, id)
	if err != nil {
		return "", err
	}
	return item.ProcessingStatus, nil
}

func (t contentTracker) Fail(ctx context.Context, id string, cause error) error {
	return failJob(ctx, t.s.repo, id, cause)
}
