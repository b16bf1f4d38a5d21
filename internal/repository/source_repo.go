package repository

import (
	"context"

	"github.com/timmy/sourcedesk/internal/domain"
	"gorm.io/gorm"
)

// SourceRepository handles source data operations.
type SourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SourceRepository: repository instance bound to db.
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// SourceFilter narrows List results. Zero values mean no filter.
type SourceFilter struct {
	Status   domain.ProcessingStatus
	LinkType domain.LinkType
	Limit    int
	Offset   int
}

// Create inserts a new source record.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	return r.db.WithContext(ctx).Create(source).Error
}

// GetByID retrieves a source by its ID.
// Returns domain.ErrNotFound when no row matches.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	if err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &source, nil
}

// GetByIDs retrieves the sources with the given IDs, newest first.
// Unknown IDs are skipped.
func (r *SourceRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Source, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sources []domain.Source
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Find(&sources).Error
	return sources, err
}

// GetStatus returns only the processing status of a source.
func (r *SourceRepository) GetStatus(ctx context.Context, id string) (domain.ProcessingStatus, error) {
	var source domain.Source
	err := r.db.WithContext(ctx).
		Select("processing_status").
		First(&source, "id = ?", id).Error
	if err != nil {
		return "", notFound(err)
	}
	return source.ProcessingStatus, nil
}

// GetJobState returns the status of a source and when it entered processing.
func (r *SourceRepository) GetJobState(ctx context.Context, id string) (domain.JobState, error) {
	return jobState(ctx, r.db, &domain.Source{}, id)
}

// List retrieves sources, newest first.
func (r *SourceRepository) List(ctx context.Context, filter SourceFilter) ([]domain.Source, error) {
	query := r.db.WithContext(ctx).Model(&domain.Source{})
	if filter.Status != "" {
		query = query.Where("processing_status = ?", filter.Status)
	}
	if filter.LinkType != "" {
		query = query.Where("link_type = ?", filter.LinkType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var sources []domain.Source
	if err := query.Order("created_at DESC").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// ListPollable returns the IDs of processing sources that have a session id.
func (r *SourceRepository) ListPollable(ctx context.Context) ([]string, error) {
	return listPollable(ctx, r.db, &domain.Source{})
}

// UpdateIfStatus applies update only while the source is still in status from.
// Returns false when the source moved on or does not exist.
func (r *SourceRepository) UpdateIfStatus(ctx context.Context, id string, from domain.ProcessingStatus, update JobUpdate) (bool, error) {
	return updateIfStatus(ctx, r.db, &domain.Source{}, id, from, update)
}

// UpdateProgress stores the latest raw engine payload of a processing source.
func (r *SourceRepository) UpdateProgress(ctx context.Context, id string, raw []byte) error {
	return updateProgress(ctx, r.db, &domain.Source{}, id, raw)
}

// UpdateMetadata sets the title and description of a source.
func (r *SourceRepository) UpdateMetadata(ctx context.Context, id, title, description string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "description": description}).Error
}

// Delete removes a source by ID.
// Returns domain.ErrNotFound when no row matches.
func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Source{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of sources per processing status.
func (r *SourceRepository) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int64, error) {
	return countByStatus(ctx, r.db, &domain.Source{})
}
