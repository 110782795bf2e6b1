package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

func testPrompts() mockPromptStore {
	return mockPromptStore{
		driven.PromptTutorSystem: "You are a %s tutor. Cite sources as [Source N].",
		driven.PromptNoContext:   "No course material matched this question.",
	}
}

func TestAnswerService_Ask(t *testing.T) {
	env, _, derivs := indexedCalculus(t)
	llm := &mockLLM{reply: "  A derivative is a rate of change [Source 1].  "}
	opts := driven.ChatOptions{MaxTokens: 512, Temperature: 0.2}
	svc := NewAnswerService(env.retrieval, env.catalog, llm, testPrompts(), opts)

	answer, err := svc.Ask(context.Background(), domain.RetrievalQuery{
		Text:  "what is a derivative",
		Scope: domain.Scope{CollectionID: "calc-101"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "A derivative is a rate of change [Source 1].", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, derivs, answer.Sources[0].DocumentID)
	assert.Equal(t, opts, llm.opts)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, "system", llm.messages[0].Role)
	assert.Equal(t, "You are a Calculus tutor. Cite sources as [Source N].", llm.messages[0].Content)

	user := llm.messages[1]
	assert.Equal(t, "user", user.Role)
	assert.True(t, strings.HasPrefix(user.Content, "what is a derivative\n\nRelevant course material:\n"))
	assert.Contains(t, user.Content, "[Source 1] week_2-derivatives.pdf, page 1:\n"+derivativesText)
}

func TestAnswerService_SubjectMetadataShapesQuery(t *testing.T) {
	env, _, _ := indexedCalculus(t)
	llm := &mockLLM{reply: "ok"}
	svc := NewAnswerService(env.retrieval, env.catalog, llm, testPrompts(), driven.ChatOptions{})

	_, err := svc.Ask(context.Background(), domain.RetrievalQuery{
		Text:  "what is a limit",
		Scope: domain.Scope{CollectionID: "calc-101"},
	}, nil)
	require.NoError(t, err)

	last := env.provider.batches[len(env.provider.batches)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "Subject: Calculus\nContent: what is a limit", last[0])
}

func TestAnswerService_NoContext(t *testing.T) {
	env, _, _ := indexedCalculus(t)
	llm := &mockLLM{reply: "I could not find that in your course."}
	svc := NewAnswerService(env.retrieval, env.catalog, llm, testPrompts(), driven.ChatOptions{})

	answer, err := svc.Ask(context.Background(), domain.RetrievalQuery{
		Text:  "who painted the mona lisa",
		Scope: domain.Scope{CollectionID: "calc-101"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "who painted the mona lisa\n\nNo course material matched this question.", llm.messages[1].Content)
}

func TestAnswerService_HistoryIsCapped(t *testing.T) {
	env, _, _ := indexedCalculus(t)
	llm := &mockLLM{reply: "ok"}
	svc := NewAnswerService(env.retrieval, env.catalog, llm, testPrompts(), driven.ChatOptions{})

	history := make([]domain.ChatMessage, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, domain.ChatMessage{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	_, err := svc.Ask(context.Background(), domain.RetrievalQuery{Text: "limit"}, history)
	require.NoError(t, err)

	require.Len(t, llm.messages, maxHistory+2)
	assert.Equal(t, "turn 4", llm.messages[1].Content)
	assert.Equal(t, "turn 13", llm.messages[maxHistory].Content)
	assert.Equal(t, "system", llm.messages[0].Role)
}

func TestAnswerService_Errors(t *testing.T) {
	env, _, _ := indexedCalculus(t)
	ctx := context.Background()

	t.Run("no llm", func(t *testing.T) {
		svc := NewAnswerService(env.retrieval, env.catalog, nil, testPrompts(), driven.ChatOptions{})
		_, err := svc.Ask(ctx, domain.RetrievalQuery{Text: "limit"}, nil)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("unknown collection", func(t *testing.T) {
		svc := NewAnswerService(env.retrieval, env.catalog, &mockLLM{}, testPrompts(), driven.ChatOptions{})
		_, err := svc.Ask(ctx, domain.RetrievalQuery{Text: "limit", Scope: domain.Scope{CollectionID: "nope"}}, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("llm failure", func(t *testing.T) {
		llm := &mockLLM{err: fmt.Errorf("status 503: %w", domain.ErrTransientProvider)}
		svc := NewAnswerService(env.retrieval, env.catalog, llm, testPrompts(), driven.ChatOptions{})
		_, err := svc.Ask(ctx, domain.RetrievalQuery{Text: "limit"}, nil)
		assert.ErrorIs(t, err, domain.ErrTransientProvider)
	})

	t.Run("missing prompt", func(t *testing.T) {
		svc := NewAnswerService(env.retrieval, env.catalog, &mockLLM{}, mockPromptStore{}, driven.ChatOptions{})
		_, err := svc.Ask(ctx, domain.RetrievalQuery{Text: "limit"}, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAnswerService_TemplateWithoutSubject(t *testing.T) {
	env, _, _ := indexedCalculus(t)
	llm := &mockLLM{reply: "ok"}
	prompts := testPrompts()
	prompts[driven.PromptTutorSystem] = "Answer from the material."
	svc := NewAnswerService(env.retrieval, env.catalog, llm, prompts, driven.ChatOptions{})

	_, err := svc.Ask(context.Background(), domain.RetrievalQuery{Text: "limit"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Answer from the material.", llm.messages[0].Content)
}
