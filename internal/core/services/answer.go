package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// maxHistory bounds the earlier turns sent with a question.
const maxHistory = 10

// AnswerService builds a tutor prompt from retrieved segments and asks the LLM.
type AnswerService struct {
	retrieval driving.RetrievalService
	catalog   driven.CatalogStore
	llm       driven.LLMService
	prompts   driven.PromptStore
	opts      driven.ChatOptions
}

// NewAnswerService creates an answer service. llm may be nil, in which
// case Ask returns domain.ErrLLMUnavailable.
func NewAnswerService(
	retrieval driving.RetrievalService,
	catalog driven.CatalogStore,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts driven.ChatOptions,
) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		catalog:   catalog,
		llm:       llm,
		prompts:   prompts,
		opts:      opts,
	}
}

// Ask retrieves context for the question and generates an answer citing it.
func (s *AnswerService) Ask(ctx context.Context, q domain.RetrievalQuery, history []domain.ChatMessage) (*domain.Answer, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	subject := q.Subject
	if subject == "" && q.Scope.CollectionID != "" {
		coll, err := s.catalog.GetCollection(ctx, q.Scope.CollectionID)
		if err != nil {
			return nil, fmt.Errorf("get collection: %w", err)
		}
		subject = coll.Subject
		q.Subject = coll.Subject
	}

	sources, err := s.retrieval.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	system, err := s.systemPrompt(subject)
	if err != nil {
		return nil, err
	}
	user, err := s.userMessage(q.Text, sources)
	if err != nil {
		return nil, err
	}

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: user})

	logger.Debug("asking %s with %d source(s)", s.llm.ModelName(), len(sources))
	text, err := s.llm.Chat(ctx, messages, s.opts)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: strings.TrimSpace(text), Sources: sources}, nil
}

func (s *AnswerService) systemPrompt(subject string) (string, error) {
	tmpl, err := s.prompts.Load(driven.PromptTutorSystem)
	if err != nil {
		return "", fmt.Errorf("load system prompt: %w", err)
	}
	if subject == "" {
		subject = "general"
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, subject), nil
	}
	return tmpl, nil
}

// userMessage appends numbered source excerpts to the question.
func (s *AnswerService) userMessage(question string, sources []domain.RetrievedSegment) (string, error) {
	var b strings.Builder
	b.WriteString(question)

	if len(sources) == 0 {
		note, err := s.prompts.Load(driven.PromptNoContext)
		if err != nil {
			return "", fmt.Errorf("load no-context prompt: %w", err)
		}
		b.WriteString("\n\n")
		b.WriteString(note)
		return b.String(), nil
	}

	b.WriteString("\n\nRelevant course material:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "\n[Source %d] %s", i+1, src.SourceName)
		if src.PageNumber > 0 {
			fmt.Fprintf(&b, ", page %d", src.PageNumber)
		}
		b.WriteString(":\n")
		b.WriteString(src.Text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
