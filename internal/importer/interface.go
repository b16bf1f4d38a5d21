package importer

import (
	"context"

	"github.com/timmy/sourcedesk/internal/domain"
)

// Item is one link offered by a feed.
type Item struct {
	ExternalID string // Unique ID within the feed
	Link       string
	LinkType   domain.LinkType
	Title      string
}

// Feed defines the interface for bulk source feeds.
type Feed interface {
	// GetFeedID returns the unique identifier for this feed.
	GetFeedID() string

	// GetDisplayName returns a human-readable name for this feed.
	GetDisplayName() string

	// FetchBatch fetches a batch of items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []Item, nextCursor string, err error)
}
