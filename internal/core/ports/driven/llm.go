package driven

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// LLMService generates answers from retrieved course material.
// This is an optional service - when nil, only retrieval is available.
type LLMService interface {
	// Chat conducts a multi-turn conversation.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// Prompt names understood by PromptStore.
const (
	// PromptTutorSystem is the tutor system prompt. One %s: the subject.
	PromptTutorSystem = "tutor_system"

	// PromptNoContext is appended to the question when retrieval is empty.
	PromptNoContext = "no_context"
)

// PromptStore loads prompt templates by name.
type PromptStore interface {
	// Load returns the template for name, falling back to a built-in default.
	Load(name string) (string, error)
}
