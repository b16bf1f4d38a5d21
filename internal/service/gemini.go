package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/logger"
	"google.golang.org/genai"
)

// LLM generates text from a system instruction and a conversation.
type LLM interface {
	Generate(ctx context.Context, system string, history []domain.ChatMessage, prompt string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiService implements LLM and Embedder with the Gemini API.
type GeminiService struct {
	client      *genai.Client
	chatModel   string
	embedModel  string
	dimension   int32
	temperature float32
	timeout     time.Duration
}

// NewGeminiService creates a Gemini client.
// Parameters:
//   - ctx: context used for client construction.
//   - cfg: gemini configuration including API key and model names.
//
// Returns:
//   - *GeminiService: initialized client wrapper.
//   - error: *diaflow.ConfigurationError when the API key is missing.
func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, &diaflow.ConfigurationError{Field: "gemini.api_key"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiService{
		client:      client,
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbedModel,
		dimension:   int32(cfg.EmbedDimension),
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

// Generate runs one chat completion.
func (s *GeminiService) Generate(ctx context.Context, system string, history []domain.ChatMessage, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		var role string
		switch msg.Role {
		case domain.ChatRoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.chatModel, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"model":                s.chatModel,
	}).Debug(ctx, "Gemini completion finished")
	return text, nil
}

// Embed returns the embedding of text.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cfg := &genai.EmbedContentConfig{}
	if s.dimension > 0 {
		cfg.OutputDimensionality = &s.dimension
	}

	result, err := s.client.Models.EmbedContent(ctx, s.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	return result.Embeddings[0].Values, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
