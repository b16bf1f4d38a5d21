package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/prompts"
	"github.com/timmy/sourcedesk/internal/repository"
)

const (
	defaultRetrievalTopK = 5
	maxHistoryMessages   = 20
)

// ChatService answers questions about sources.
type ChatService struct {
	sources  *repository.SourceRepository
	llm      LLM
	embedder Embedder
	index    SourceIndex
}

// NewChatService creates a chat service. embedder and index may be nil, in
// which case questions without explicit sources are rejected.
func NewChatService(sources *repository.SourceRepository, llm LLM, embedder Embedder, index SourceIndex) *ChatService {
	return &ChatService{
		sources:  sources,
		llm:      llm,
		embedder: embedder,
		index:    index,
	}
}

// AskRequest is the input of Ask.
type AskRequest struct {
	SourceIDs []string             `json:"source_ids"`
	Question  string               `json:"question" binding:"required"`
	History   []domain.ChatMessage `json:"history" binding:"dive"`
}

// AskResponse is the answer and the sources it was grounded on.
type AskResponse struct {
	Answer    string   `json:"answer"`
	SourceIDs []string `json:"source_ids"`
}

// Ask answers question using the chosen sources, or the closest indexed
// sources when none are chosen.
func (s *ChatService) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, invalidInput("question is required")
	}

	ids := req.SourceIDs
	if len(ids) == 0 {
		retrieved, err := s.retrieve(ctx, question)
		if err != nil {
			return nil, err
		}
		ids = retrieved
	}

	sources, err := s.sources.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	contexts := make([]prompts.SourceContext, 0, len(sources))
	used := make([]string, 0, len(sources))
	for i := range sources {
		text := sources[i].ContextText()
		if sources[i].ProcessingStatus != domain.ProcessingStatusCompleted || text == "" {
			continue
		}
		contexts = append(contexts, prompts.SourceContext{
			Title: sources[i].Title,
			Link:  sources[i].Link,
			Text:  text,
		})
		used = append(used, sources[i].ID)
	}
	if len(contexts) == 0 {
		return nil, invalidInput("no processed sources to answer from")
	}

	history := req.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	answer, err := s.llm.Generate(ctx, prompts.BuildChatSystem(contexts), history, question)
	if err != nil {
		return nil, err
	}
	return &AskResponse{Answer: answer, SourceIDs: used}, nil
}

func (s *ChatService) retrieve(ctx context.Context, question string) ([]string, error) {
	if s.embedder == nil || s.index == nil {
		return nil, invalidInput("source_ids is required when retrieval is disabled")
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := s.index.Search(ctx, vector, defaultRetrievalTopK, "")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// SuggestQuestions proposes questions about a processed source.
func (s *ChatService) SuggestQuestions(ctx context.Context, sourceID string) ([]domain.SuggestedQuestion, error) {
	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	text := src.ContextText()
	if src.ProcessingStatus != domain.ProcessingStatusCompleted || text == "" {
		return nil, invalidInput("source %s has not been processed", sourceID)
	}

	title := src.Title
	if title == "" {
		title = src.Link
	}
	raw, err := s.llm.Generate(ctx, "", nil, prompts.BuildQuestionsPrompt(title, text))
	if err != nil {
		return nil, fmt.Errorf("failed to suggest questions: %w", err)
	}

	lines := parseQuestions(raw, prompts.QuestionsCount)
	questions := make([]domain.SuggestedQuestion, 0, len(lines))
	for _, q := range lines {
		questions = append(questions, domain.SuggestedQuestion{SourceID: sourceID, Question: q})
	}
	return questions, nil
}

// parseQuestions splits model output into at most max questions, dropping
// bullets and numbering.
func parseQuestions(raw string, max int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsDigit(r) || strings.ContainsRune("-*•.)", r)
		})
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
