package diaflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sourcedesk/internal/domain"
)

const maxErrorBody = 2048

// Config holds configuration for the engine client.
// Builders is copied at construction and never changes afterwards.
type Config struct {
	BaseURL  string
	APIKey   string
	Builders map[domain.JobKind]string
	Timeout  time.Duration
}

// TranscribeRequest is the submission body for source transcription.
type TranscribeRequest struct {
	Link       string `json:"link"`
	TypeOfLink string `json:"type_of_link"`
}

// PromptRequest is the submission body for text and image generation.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// StatusResponse is a decoded status-check reply.
// Result maps output node names to their field maps; it is nil when the
// engine sent no result or sent something that is not an object.
type StatusResponse struct {
	Status string
	Result map[string]any
	Raw    []byte
}

// Client talks to the Diaflow builder API.
type Client struct {
	client   *resty.Client
	baseURL  string
	apiKey   string
	builders map[domain.JobKind]string
}

// NewClient creates a new engine client.
// Parameters:
//   - cfg: engine configuration including base URL, API key and builder table.
//
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	builders := make(map[domain.JobKind]string, len(cfg.Builders))
	for kind, id := range cfg.Builders {
		builders[kind] = id
	}

	return &Client{
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		builders: builders,
	}
}

// builder resolves the builder id for kind.
func (c *Client) builder(kind domain.JobKind) (string, error) {
	if c.apiKey == "" {
		return "", &ConfigurationError{Field: "diaflow.api_key"}
	}
	if c.baseURL == "" {
		return "", &ConfigurationError{Field: "diaflow.base_url"}
	}
	id, ok := c.builders[kind]
	if !ok || id == "" {
		return "", &ConfigurationError{Field: "diaflow.builders." + string(kind)}
	}
	return id, nil
}

// Submit starts a job and returns the engine session id.
// Submissions are never retried here.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: job kind selecting the builder.
//   - payload: kind-specific request body (TranscribeRequest or PromptRequest).
//
// Returns:
//   - string: session id.
//   - error: *ConfigurationError or *SubmissionFailedError.
func (c *Client) Submit(ctx context.Context, kind domain.JobKind, payload any) (string, error) {
	builderID, err := c.builder(kind)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/process", c.baseURL, url.PathEscape(builderID))

	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return "", &SubmissionFailedError{Kind: string(kind), Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", &SubmissionFailedError{
			Kind:       string(kind),
			StatusCode: httpResp.StatusCode(),
			Body:       truncate(httpResp.String()),
		}
	}

	sessionID, ok := sessionIDFromBody(httpResp.Body())
	if !ok {
		return "", &SubmissionFailedError{
			Kind:       string(kind),
			StatusCode: httpResp.StatusCode(),
			Err:        fmt.Errorf("no session id in response: %s", truncate(httpResp.String())),
		}
	}

	return sessionID, nil
}

// CheckStatus fetches the current state of a session.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: job kind selecting the builder.
//   - sessionID: id returned by Submit.
//
// Returns:
//   - *StatusResponse: decoded status and raw body.
//   - error: *ConfigurationError or *StatusCheckFailedError.
func (c *Client) CheckStatus(ctx context.Context, kind domain.JobKind, sessionID string) (*StatusResponse, error) {
	builderID, err := c.builder(kind)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/process-checks/%s", c.baseURL, url.PathEscape(builderID), url.PathEscape(sessionID))

	httpResp, err := c.client.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, &StatusCheckFailedError{SessionID: sessionID, Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, &StatusCheckFailedError{
			SessionID:  sessionID,
			StatusCode: httpResp.StatusCode(),
			Body:       truncate(httpResp.String()),
		}
	}

	resp, err := decodeStatus(httpResp.Body())
	if err != nil {
		return nil, &StatusCheckFailedError{SessionID: sessionID, StatusCode: httpResp.StatusCode(), Err: err}
	}
	return resp, nil
}

// decodeStatus reads {status, result} without trusting either field's type.
func decodeStatus(body []byte) (*StatusResponse, error) {
	var envelope struct {
		Status any `json:"status"`
		Result any `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	resp := &StatusResponse{Raw: body}
	if s, ok := envelope.Status.(string); ok {
		resp.Status = s
	}
	if m, ok := envelope.Result.(map[string]any); ok {
		resp.Result = m
	}
	return resp, nil
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
