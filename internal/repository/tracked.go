package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/sourcedesk/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobUpdate is a partial update of the job-derived columns of an entity.
// Nil pointers leave their column untouched.
type JobUpdate struct {
	Status        domain.ProcessingStatus
	SessionID     *string
	FailureReason *string
	StartedAt     *time.Time
	Raw           []byte
	Fields        map[string]any
}

func (u JobUpdate) columns() map[string]any {
	cols := make(map[string]any, len(u.Fields)+4)
	for k, v := range u.Fields {
		cols[k] = v
	}
	cols["processing_status"] = u.Status
	if u.SessionID != nil {
		cols["diaflow_session_id"] = *u.SessionID
	}
	if u.StartedAt != nil {
		cols["processing_started_at"] = *u.StartedAt
	}
	if u.FailureReason != nil {
		cols["failure_reason"] = *u.FailureReason
	}
	if len(u.Raw) > 0 {
		cols["raw_last_response"] = datatypes.JSON(u.Raw)
	}
	return cols
}

// updateIfStatus applies update to the row with id only while its status is
// still from. It reports whether a row changed.
func updateIfStatus(ctx context.Context, db *gorm.DB, model any, id string, from domain.ProcessingStatus, update JobUpdate) (bool, error) {
	if !from.CanTransitionTo(update.Status) {
		return false, domain.ErrInvalidTransition
	}

	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(update.columns())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// updateProgress rewrites the raw payload of a still-processing row without
// changing its status.
func updateProgress(ctx context.Context, db *gorm.DB, model any, id string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(model).
		Where("id = ? AND processing_status = ?", id, domain.ProcessingStatusProcessing).
		Update("raw_last_response", datatypes.JSON(raw)).Error
}

// listPollable returns ids of processing rows that carry a session id.
func listPollable(ctx context.Context, db *gorm.DB, model any) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(model).
		Where("processing_status = ? AND diaflow_session_id IS NOT NULL AND diaflow_session_id <> ''", domain.ProcessingStatusProcessing).
		Order("created_at").
		Pluck("id", &ids).Error
	return ids, err
}

// jobState reads the status and processing start of one row. Rows that
// entered processing before the start was recorded fall back to created_at.
func jobState(ctx context.Context, db *gorm.DB, model any, id string) (domain.JobState, error) {
	var row struct {
		ProcessingStatus    domain.ProcessingStatus
		ProcessingStartedAt *time.Time
		CreatedAt           time.Time
	}
	result := db.WithContext(ctx).
		Model(model).
		Select("processing_status, processing_started_at, created_at").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return domain.JobState{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.JobState{}, domain.ErrNotFound
	}

	state := domain.JobState{Status: row.ProcessingStatus}
	switch {
	case row.ProcessingStartedAt != nil:
		state.StartedAt = *row.ProcessingStartedAt
	case row.ProcessingStatus != domain.ProcessingStatusPending:
		state.StartedAt = row.CreatedAt
	}
	return state, nil
}

// countByStatus groups rows of model by processing status.
func countByStatus(ctx context.Context, db *gorm.DB, model any) (map[domain.ProcessingStatus]int64, error) {
	var rows []struct {
		ProcessingStatus domain.ProcessingStatus
		Count            int64
	}
	err := db.WithContext(ctx).
		Model(model).
		Select("processing_status, COUNT(*) AS count").
		Group("processing_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ProcessingStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.ProcessingStatus] = r.Count
	}
	return counts, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
