package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/importer"
)

// Entry represents a line in a JSONL link manifest.
type Entry struct {
	ID         string `json:"id"`
	Link       string `json:"link"`
	TypeOfLink string `json:"type_of_link"`
	Title      string `json:"title"`
}

// Adapter implements importer.Feed for a JSONL manifest file.
type Adapter struct {
	path    string
	items   []importer.Item
	skipped int
	loaded  bool
}

// NewAdapter creates a new manifest adapter.
// Parameters:
//   - path: path to the manifest file.
//
// Returns:
//   - *Adapter: initialized manifest adapter.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

// GetFeedID returns the unique identifier for this feed.
func (a *Adapter) GetFeedID() string {
	return "manifest:" + strings.TrimSuffix(filepath.Base(a.path), filepath.Ext(a.path))
}

// GetDisplayName returns a human-readable name for this feed.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Manifest (%s)", a.path)
}

// Skipped returns how many manifest lines were ignored while loading.
func (a *Adapter) Skipped() int {
	return a.skipped
}

// FetchBatch fetches a batch of items from the manifest.
// The cursor is the index of the next item.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]importer.Item, string, error) {
	// Load all items on first call
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load manifest: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}

	if startIndex >= len(a.items) {
		return []importer.Item{}, "", nil
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}

	return a.items[startIndex:endIndex], nextCursor, nil
}

// loadItems reads the manifest, dropping malformed lines, unknown link types
// and repeated links.
func (a *Adapter) loadItems() error {
	file, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer file.Close()

	a.items = []importer.Item{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			a.skipped++
			continue
		}

		linkType := domain.LinkType(entry.TypeOfLink)
		link := strings.TrimSpace(entry.Link)
		if link == "" || !linkType.Valid() || seen[link] {
			a.skipped++
			continue
		}
		seen[link] = true

		id := entry.ID
		if id == "" {
			id = fmt.Sprintf("line-%06d", lineNo)
		}

		a.items = append(a.items, importer.Item{
			ExternalID: id,
			Link:       link,
			LinkType:   linkType,
			Title:      entry.Title,
		})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}

	// Sort items by ID for consistent ordering
	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].ExternalID < a.items[j].ExternalID
	})

	return nil
}
