package service

import (
	"context"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/repository"
)

// ActiveCounter reports how many entities are being polled.
type ActiveCounter interface {
	Len() int
}

// EmptyExtractionCounter reports done sessions whose result could not be mapped.
type EmptyExtractionCounter interface {
	EmptyExtractions() int64
}

// Stats is a snapshot of the job pipeline.
type Stats struct {
	Sources          map[domain.ProcessingStatus]int64 `json:"sources"`
	Contents         map[domain.ProcessingStatus]int64 `json:"contents"`
	Compliance       map[domain.ComplianceStatus]int64 `json:"compliance"`
	PollingSources   int                               `json:"polling_sources"`
	PollingContents  int                               `json:"polling_contents"`
	EmptyExtractions int64                             `json:"empty_extractions"`
}

// StatsService aggregates counters for the dashboard.
type StatsService struct {
	sources        *repository.SourceRepository
	contents       *repository.ContentRepository
	sourcePolls    ActiveCounter
	contentPolls   ActiveCounter
	extractionsLog EmptyExtractionCounter
}

// NewStatsService creates a stats service. Counters may be nil.
func NewStatsService(sources *repository.SourceRepository, contents *repository.ContentRepository, sourcePolls, contentPolls ActiveCounter, extractions EmptyExtractionCounter) *StatsService {
	return &StatsService{
		sources:        sources,
		contents:       contents,
		sourcePolls:    sourcePolls,
		contentPolls:   contentPolls,
		extractionsLog: extractions,
	}
}

// Get collects the current counters.
func (s *StatsService) Get(ctx context.Context) (*Stats, error) {
	sources, err := s.sources.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	contents, err := s.contents.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	compliance, err := s.contents.CountByCompliance(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Sources:    sources,
		Contents:   contents,
		Compliance: compliance,
	}
	if s.sourcePolls != nil {
		stats.PollingSources = s.sourcePolls.Len()
	}
	if s.contentPolls != nil {
		stats.PollingContents = s.contentPolls.Len()
	}
	if s.extractionsLog != nil {
		stats.EmptyExtractions = s.extractionsLog.EmptyExtractions()
	}
	return stats, nil
}
