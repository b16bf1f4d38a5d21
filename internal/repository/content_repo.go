package repository

import (
	"context"

	"github.com/timmy/sourcedesk/internal/domain"
	"gorm.io/gorm"
)

// ContentRepository handles generated content data operations.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// ContentFilter narrows List results. Zero values mean no filter.
type ContentFilter struct {
	SourceID   string
	Type       domain.ContentType
	Status     domain.ProcessingStatus
	Compliance domain.ComplianceStatus
	Limit      int
	Offset     int
}

// Create inserts a new content record.
func (r *ContentRepository) Create(ctx context.Context, content *domain.GeneratedContent) error {
	return r.db.WithContext(ctx).Create(content).Error
}

// GetByID retrieves a content item by its ID.
// Returns domain.ErrNotFound when no row matches.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.GeneratedContent, error) {
	var content domain.GeneratedContent
	if err := r.db.WithContext(ctx).First(&content, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &content, nil
}

// GetStatus returns only the processing status of a content item.
func (r *ContentRepository) GetStatus(ctx context.Context, id string) (domain.ProcessingStatus, error) {
	var content domain.GeneratedContent
	err := r.db.WithContext(ctx).
		Select("processing_status").
		First(&content, "id = ?", id).Error
	if err != nil {
		return "", notFound(err)
	}
	return content.ProcessingStatus, nil
}

// GetJobState returns the status of a content item and when it entered processing.
func (r *ContentRepository) GetJobState(ctx context.Context, id string) (domain.JobState, error) {
	return jobState(ctx, r.db, &domain.GeneratedContent{}, id)
}

// List retrieves content items, newest first.
func (r *ContentRepository) List(ctx context.Context, filter ContentFilter) ([]domain.GeneratedContent, error) {
	query := r.db.WithContext(ctx).Model(&domain.GeneratedContent{})
	if filter.SourceID != "" {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("processing_status = ?", filter.Status)
	}
	if filter.Compliance != "" {
		query = query.Where("compliance_status = ?", filter.Compliance)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var contents []domain.GeneratedContent
	if err := query.Order("created_at DESC").Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

// ListPollable returns the IDs of processing content items that have a session id.
func (r *ContentRepository) ListPollable(ctx context.Context) ([]string, error) {
	return listPollable(ctx, r.db, &domain.GeneratedContent{})
}

// UpdateIfStatus applies update only while the item is still in status from.
func (r *ContentRepository) UpdateIfStatus(ctx context.Context, id string, from domain.ProcessingStatus, update JobUpdate) (bool, error) {
	return updateIfStatus(ctx, r.db, &domain.GeneratedContent{}, id, from, update)
}

// UpdateProgress stores the latest raw engine payload of a processing item.
func (r *ContentRepository) UpdateProgress(ctx context.Context, id string, raw []byte) error {
	return updateProgress(ctx, r.db, &domain.GeneratedContent{}, id, raw)
}

// UpdateDimensions records the pixel size of a generated image.
func (r *ContentRepository) UpdateDimensions(ctx context.Context, id string, width, height int) error {
	return r.db.WithContext(ctx).
		Model(&domain.GeneratedContent{}).
		Where("id = ?", id).
		Updates(map[string]any{"width": width, "height": height}).Error
}

// UpdateCompliance moves an item on the compliance board if it is still in from.
// Returns false when the item was moved concurrently or does not exist.
func (r *ContentRepository) UpdateCompliance(ctx context.Context, id string, from, to domain.ComplianceStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.GeneratedContent{}).
		Where("id = ? AND compliance_status = ?", id, from).
		Update("compliance_status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a content item by ID.
// Returns domain.ErrNotFound when no row matches.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.GeneratedContent{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of content items per processing status.
func (r *ContentRepository) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int64, error) {
	return countByStatus(ctx, r.db, &domain.GeneratedContent{})
}

// CountByCompliance returns the number of content items per board column.
func (r *ContentRepository) CountByCompliance(ctx context.Context) (map[domain.ComplianceStatus]int64, error) {
	var rows []struct {
		ComplianceStatus domain.ComplianceStatus
		Count            int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.GeneratedContent{}).
		Select("compliance_status, COUNT(*) AS count").
		Group("compliance_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ComplianceStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.ComplianceStatus] = row.Count
	}
	return counts, nil
}
