package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/diaflow"
)

// CDNSigner builds signed, time-limited URLs for generated images.
// The signing parameters are issued out of band and passed through verbatim.
type CDNSigner struct {
	baseURL   *url.URL
	policy    string
	signature string
	keyPairID string
}

// NewCDNSigner creates a signer from the cdn config section.
// A missing parameter is reported as a *diaflow.ConfigurationError.
func NewCDNSigner(cfg *config.CDNConfig) (*CDNSigner, error) {
	required := []struct {
		field string
		value string
	}{
		{"cdn.base_url", cfg.BaseURL},
		{"cdn.policy", cfg.Policy},
		{"cdn.signature", cfg.Signature},
		{"cdn.key_pair_id", cfg.KeyPairID},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &diaflow.ConfigurationError{Field: r.field}
		}
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid cdn base url: %w", err)
	}

	return &CDNSigner{
		baseURL:   base,
		policy:    cfg.Policy,
		signature: cfg.Signature,
		keyPairID: cfg.KeyPairID,
	}, nil
}

// SignedURL joins path onto the base URL and appends the signing parameters.
func (s *CDNSigner) SignedURL(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty image path")
	}

	u := *s.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")

	q := u.Query()
	q.Set("Policy", s.policy)
	q.Set("Signature", s.signature)
	q.Set("Key-Pair-Id", s.keyPairID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
