package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// PageMetadata is what a web page says about itself.
type PageMetadata struct {
	Title       string
	Description string
}

// PageInspector fetches title and description of web sources.
type PageInspector interface {
	Inspect(ctx context.Context, link string) (*PageMetadata, error)
}

// HTMLInspector implements PageInspector by parsing the page head.
type HTMLInspector struct {
	client *resty.Client
}

// NewHTMLInspector creates an inspector with a short fetch timeout.
func NewHTMLInspector(timeout time.Duration) *HTMLInspector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "sourcedesk/1.0 (+metadata)")
	client.SetHeader("Accept", "text/html,application/xhtml+xml")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTMLInspector{client: client}
}

// Inspect downloads link and reads its title and description.
// Open Graph tags win over the plain title and description tags.
func (i *HTMLInspector) Inspect(ctx context.Context, link string) (*PageMetadata, error) {
	resp, err := i.client.R().SetContext(ctx).Get(link)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch page: HTTP %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	meta := &PageMetadata{
		Title:       firstNonEmpty(metaContent(doc, `meta[property="og:title"]`), doc.Find("title").First().Text()),
		Description: firstNonEmpty(metaContent(doc, `meta[property="og:description"]`), metaContent(doc, `meta[name="description"]`)),
	}
	return meta, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}
