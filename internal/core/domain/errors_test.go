package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrTransientProvider", ErrTransientProvider},
		{"ErrPermanentInput", ErrPermanentInput},
		{"ErrAlreadyInProgress", ErrAlreadyInProgress},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrInvalidTransition", ErrInvalidTransition},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrRetrievalUnavailable", ErrRetrievalUnavailable},
		{"ErrCancelled", ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestEmbeddingProviderError(t *testing.T) {
	cause := fmt.Errorf("status 429: %w", ErrTransientProvider)
	err := &EmbeddingProviderError{Attempts: 5, Err: cause}

	assert.Contains(t, err.Error(), "5 attempt(s)")
	assert.ErrorIs(t, err, ErrTransientProvider)

	var target *EmbeddingProviderError
	wrapped := fmt.Errorf("embedding segments: %w", err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 5, target.Attempts)
}

func TestParseError_IsPermanent(t *testing.T) {
	err := &ParseError{Source: "b.pdf", Reason: "no text layer"}

	assert.ErrorIs(t, err, ErrPermanentInput)
	assert.Equal(t, "parse b.pdf: no text layer", err.Error())
	assert.False(t, IsTransient(err))

	withCause := &ParseError{Source: "b.pdf", Reason: "exit status 1", Err: errors.New("boom")}
	assert.Contains(t, withCause.Error(), "boom")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"transient sentinel", fmt.Errorf("rate limited: %w", ErrTransientProvider), true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"permanent", ErrPermanentInput, false},
		{"dimension mismatch", ErrDimensionMismatch, false},
		{"conflict", ErrAlreadyInProgress, false},
		{"plain error", errors.New("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}
