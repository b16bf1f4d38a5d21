package service

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"
)

const maxProbeBytes = 8 << 20

// ImageProber reads the pixel size of a remote image.
type ImageProber interface {
	Dimensions(ctx context.Context, url string) (int, int, error)
}

// HTTPImageProber decodes only the image header of the fetched file.
type HTTPImageProber struct {
	client *resty.Client
}

// NewHTTPImageProber creates a prober.
func NewHTTPImageProber(timeout time.Duration) *HTTPImageProber {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &HTTPImageProber{client: client}
}

// Dimensions fetches url and returns width and height.
func (p *HTTPImageProber) Dimensions(ctx context.Context, url string) (int, int, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return 0, 0, fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode())
	}

	cfg, _, err := image.DecodeConfig(io.LimitReader(body, maxProbeBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
