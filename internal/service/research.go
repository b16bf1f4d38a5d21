package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sourcedesk/internal/config"
)

const paperFields = "title,abstract,url,year,authors,openAccessPdf"

// Paper is a Semantic Scholar search hit.
type Paper struct {
	PaperID  string   `json:"paper_id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url"`
	PDFURL   string   `json:"pdf_url,omitempty"`
	Year     int      `json:"year,omitempty"`
	Authors  []string `json:"authors"`
}

// ResearchService searches academic papers that can be added as sources.
type ResearchService struct {
	client *resty.Client
}

// NewResearchService creates a Semantic Scholar client.
func NewResearchService(cfg *config.ResearchConfig) *ResearchService {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetTimeout(20 * time.Second)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}
	return &ResearchService{client: client}
}

type paperSearchResponse struct {
	Data []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		URL      string `json:"url"`
		Year     int    `json:"year"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
		OpenAccessPDF *struct {
			URL string `json:"url"`
		} `json:"openAccessPdf"`
	} `json:"data"`
}

// SearchPapers returns up to limit papers matching query.
func (s *ResearchService) SearchPapers(ctx context.Context, query string, limit int) ([]Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidInput("query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var result paperSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":  query,
			"limit":  strconv.Itoa(limit),
			"fields": paperFields,
		}).
		SetResult(&result).
		Get("/paper/search")
	if err != nil {
		return nil, fmt.Errorf("paper search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("paper search failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	papers := make([]Paper, 0, len(result.Data))
	for _, d := range result.Data {
		p := Paper{
			PaperID:  d.PaperID,
			Title:    d.Title,
			Abstract: d.Abstract,
			URL:      d.URL,
			Year:     d.Year,
		}
		if d.OpenAccessPDF != nil {
			p.PDFURL = d.OpenAccessPDF.URL
		}
		for _, a := range d.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		papers = append(papers, p)
	}
	return papers, nil
}
