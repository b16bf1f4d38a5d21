package jobs

import (
	"context"
	"sync/atomic"

	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/logger"
)

// Engine is the status-check side of the workflow engine.
type Engine interface {
	CheckStatus(ctx context.Context, kind domain.JobKind, sessionID string) (*diaflow.StatusResponse, error)
}

// URLSigner turns an engine image path into a fetchable URL.
type URLSigner interface {
	SignedURL(path string) (string, error)
}

// Reconciliation is the outcome of one status check.
type Reconciliation struct {
	Status domain.ProcessingStatus
	Result Result
	// URL is set for image jobs whose path was extracted and signed.
	URL *string
	Raw []byte
	// Empty is true when the engine reported done but no candidate node matched.
	Empty bool
}

// Reconciler checks a session and maps the engine's answer onto the
// internal lifecycle.
type Reconciler struct {
	engine Engine
	signer URLSigner

	emptyExtractions atomic.Int64
}

// NewReconciler creates a reconciler. signer may be nil when image jobs are
// not in use.
func NewReconciler(engine Engine, signer URLSigner) *Reconciler {
	return &Reconciler{engine: engine, signer: signer}
}

// EmptyExtractions returns how many done sessions produced no extractable result.
func (r *Reconciler) EmptyExtractions() int64 {
	return r.emptyExtractions.Load()
}

// Reconcile checks sessionID once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: job kind selecting the builder and output-node table.
//   - sessionID: engine session to check.
//
// Returns:
//   - *Reconciliation: normalized status and extracted result.
//   - error: *diaflow.StatusCheckFailedError, or *diaflow.ConfigurationError.
func (r *Reconciler) Reconcile(ctx context.Context, kind domain.JobKind, sessionID string) (*Reconciliation, error) {
	resp, err := r.engine.CheckStatus(ctx, kind, sessionID)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{Raw: resp.Raw}

	switch NormalizeStatus(resp.Status) {
	case OutcomeFailed:
		rec.Status = domain.ProcessingStatusFailed
		return rec, nil
	case OutcomeProcessing:
		rec.Status = domain.ProcessingStatusProcessing
		return rec, nil
	}

	rec.Status = domain.ProcessingStatusCompleted
	if resp.Result != nil {
		rec.Result = Extract(resp.Result, kind)
	}

	if rec.Result.Empty() {
		rec.Empty = true
		r.emptyExtractions.Add(1)
		logger.With(logger.Fields{
			logger.FieldEvent:     "extraction_empty",
			logger.FieldRawStatus: resp.Status,
		}).Warn(ctx, "Engine reported done but no output node matched")
		return rec, nil
	}

	if rec.Result.ImagePath != nil {
		if r.signer == nil {
			return nil, &diaflow.ConfigurationError{Field: "cdn"}
		}
		u, err := r.signer.SignedURL(*rec.Result.ImagePath)
		if err != nil {
			return nil, err
		}
		rec.URL = &u
	}

	return rec, nil
}
