package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/repository"
)

// Submitter starts engine jobs.
type Submitter interface {
	Submit(ctx context.Context, kind domain.JobKind, payload any) (string, error)
}

// StatusReconciler checks engine sessions.
type StatusReconciler interface {
	Reconcile(ctx context.Context, kind domain.JobKind, sessionID string) (*jobs.Reconciliation, error)
}

// Poller is the scheduler side the services drive.
type Poller interface {
	Start(id string) bool
	Stop(id string)
	Resume(ctx context.Context, lister jobs.Lister) (int, error)
}

// jobStore is the subset of the entity repositories the lifecycle needs.
type jobStore interface {
	UpdateIfStatus(ctx context.Context, id string, from domain.ProcessingStatus, update repository.JobUpdate) (bool, error)
	UpdateProgress(ctx context.Context, id string, raw []byte) error
}

// submitJob moves a pending entity to processing, or to failed when the
// engine refuses the job. The submission error is returned either way.
func submitJob(ctx context.Context, submitter Submitter, store jobStore, id string, kind domain.JobKind, payload any) (string, error) {
	sessionID, err := submitter.Submit(ctx, kind, payload)
	if err != nil {
		reason := err.Error()
		if _, uerr := store.UpdateIfStatus(ctx, id, domain.ProcessingStatusPending, repository.JobUpdate{
			Status:        domain.ProcessingStatusFailed,
			FailureReason: &reason,
		}); uerr != nil {
			logger.FromContext(ctx).WithError(uerr).Error("Failed to record submission failure")
		}
		logger.FromContext(ctx).WithError(err).Warn("Job submission failed")
		return "", err
	}

	startedAt := time.Now().UTC()
	ok, err := store.UpdateIfStatus(ctx, id, domain.ProcessingStatusPending, repository.JobUpdate{
		Status:    domain.ProcessingStatusProcessing,
		SessionID: &sessionID,
		StartedAt: &startedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	if !ok {
		// Deleted while the submission was in flight.
		return "", domain.ErrNotFound
	}

	logger.FromContext(logger.WithField(ctx, logger.FieldSessionID, sessionID)).Info("Job submitted")
	return sessionID, nil
}

// applyReconciliation persists a reconciliation for a processing entity.
// fields holds the kind-specific result columns written on completion.
// It reports whether the entity reached a terminal state in this call.
func applyReconciliation(ctx context.Context, store jobStore, id string, rec *jobs.Reconciliation, fields map[string]any) (bool, error) {
	switch rec.Status {
	case domain.ProcessingStatusCompleted:
		return store.UpdateIfStatus(ctx, id, domain.ProcessingStatusProcessing, repository.JobUpdate{
			Status: domain.ProcessingStatusCompleted,
			Raw:    rec.Raw,
			Fields: fields,
		})
	case domain.ProcessingStatusFailed:
		reason := jobs.ErrEngineFailed.Error()
		return store.UpdateIfStatus(ctx, id, domain.ProcessingStatusProcessing, repository.JobUpdate{
			Status:        domain.ProcessingStatusFailed,
			FailureReason: &reason,
			Raw:           rec.Raw,
		})
	default:
		return false, store.UpdateProgress(ctx, id, rec.Raw)
	}
}

// failJob forces a processing entity to failed with cause as the reason.
func failJob(ctx context.Context, store jobStore, id string, cause error) error {
	reason := cause.Error()
	_, err := store.UpdateIfStatus(ctx, id, domain.ProcessingStatusProcessing, repository.JobUpdate{
		Status:        domain.ProcessingStatusFailed,
		FailureReason: &reason,
	})
	return err
}

// IsInputError reports whether err was caused by invalid caller input.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
