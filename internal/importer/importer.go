package importer

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/service"
)

const defaultBatchSize = 50

// SourceAdder creates sources; *service.SourceService implements it.
type SourceAdder interface {
	AddSource(ctx context.Context, req *service.AddSourceRequest) (*domain.Source, error)
}

// Stats holds statistics for one import run
type Stats struct {
	TotalItems     int
	SubmittedItems int
	RejectedItems  int // invalid input, never stored
	FailedItems    int // stored as failed after a refused submission
	StartTime      time.Time
	EndTime        time.Time
}

// Importer submits every item of a feed as a source.
type Importer struct {
	sources   SourceAdder
	batchSize int
}

// New creates an importer. batchSize <= 0 uses the default.
func New(sources SourceAdder, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Importer{sources: sources, batchSize: batchSize}
}

// Run imports up to limit items (0 = all) from feed. Submission failures are
// counted and the run continues; configuration errors abort it.
func (i *Importer) Run(ctx context.Context, feed Feed, limit int) (*Stats, error) {
	ctx = logger.WithField(ctx, "feed", feed.GetFeedID())
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	logger.CtxInfo(ctx, "Starting import: feed=%s, limit=%d", feed.GetDisplayName(), limit)

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		size := i.batchSize
		if limit > 0 && limit-stats.TotalItems < size {
			size = limit - stats.TotalItems
		}
		if size <= 0 {
			break
		}

		items, next, err := feed.FetchBatch(ctx, cursor, size)
		if err != nil {
			return stats, err
		}

		for _, item := range items {
			stats.TotalItems++
			if err := i.submit(ctx, item); err != nil {
				var cfgErr *diaflow.ConfigurationError
				switch {
				case errors.As(err, &cfgErr):
					return stats, err
				case service.IsInputError(err):
					stats.RejectedItems++
				default:
					stats.FailedItems++
				}
				logger.FromContext(ctx).WithField("external_id", item.ExternalID).WithError(err).Warn("Import item failed")
				continue
			}
			stats.SubmittedItems++
		}

		if next == "" {
			break
		}
		cursor = next
	}

	logger.With(logger.Fields{
		logger.FieldCount:      stats.SubmittedItems,
		logger.FieldDurationMs: time.Since(stats.StartTime).Milliseconds(),
	}).Info(ctx, "Import completed: total=%d, submitted=%d, rejected=%d, failed=%d",
		stats.TotalItems, stats.SubmittedItems, stats.RejectedItems, stats.FailedItems)
	return stats, nil
}

func (i *Importer) submit(ctx context.Context, item Item) error {
	_, err := i.sources.AddSource(ctx, &service.AddSourceRequest{
		Link:     item.Link,
		LinkType: item.LinkType,
		Title:    item.Title,
	})
	return err
}
