package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coursemind/internal/core/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))
	return dir
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("COURSEMIND_PG_DSN", "")
	t.Setenv("COURSEMIND_REDIS_URL", "")
	t.Setenv("COURSEMIND_DATA_DIR", t.TempDir())
}

func TestBuild_LocalProviders(t *testing.T) {
	isolateEnv(t)
	dir := writeConfig(t, `
[embedding]
provider = "ollama"
model = "nomic-embed-text"

[llm]
provider = "ollama"
model = "llama3.2"

[cache]
backend = "memory"
`)

	s, err := build(context.Background(), dir)
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	assert.NotNil(t, s.Catalog)
	assert.NotNil(t, s.Indexing)
	assert.NotNil(t, s.Retrieval)
	assert.NotNil(t, s.Answer)
	assert.NotNil(t, s.Scheduler)
	assert.Equal(t, filepath.Join(dir, "config.toml"), s.Settings.ConfigPath())

	c, err := s.Catalog.AddCollection(context.Background(), domain.Collection{ID: "calc-101", Name: "Calculus I"})
	require.NoError(t, err)
	assert.Equal(t, "calc-101", c.ID)

	status, _, err := s.Indexing.CollectionStatus(context.Background(), "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 0, status.SegmentCount)
}

func TestBuild_OpenAIWithoutKeyFails(t *testing.T) {
	isolateEnv(t)
	dir := writeConfig(t, `
[embedding]
provider = "openai"
`)

	_, err := build(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuild_HTTPParserRequiresURL(t *testing.T) {
	isolateEnv(t)
	dir := writeConfig(t, `
[embedding]
provider = "ollama"

[parser]
backend = "http"
`)

	_, err := build(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser")
}

func TestBuildCache(t *testing.T) {
	ctx := context.Background()

	var cleanup closers
	c, err := buildCache(ctx, domain.CacheSettings{Backend: domain.CacheNone}, nil, &cleanup)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = buildCache(ctx, domain.CacheSettings{Backend: domain.CacheMemory}, nil, &cleanup)
	require.NoError(t, err)
	assert.IsType(t, &memory.Cache{}, c)
	assert.Empty(t, cleanup)
}

func TestBuildLLM(t *testing.T) {
	llm, err := buildLLM(domain.LLMSettings{Provider: domain.AIProviderOllama})
	require.NoError(t, err)
	assert.NotNil(t, llm)

	_, err = buildLLM(domain.LLMSettings{Provider: domain.AIProviderAnthropic})
	assert.Error(t, err)

	_, err = buildLLM(domain.LLMSettings{Provider: "mystery"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuildEmbeddingProvider(t *testing.T) {
	p, err := buildEmbeddingProvider(domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "mxbai-embed-large",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1024, p.Dimensions())

	_, err = buildEmbeddingProvider(domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClosers(t *testing.T) {
	var order []int
	var c closers
	c.add(func() error { order = append(order, 1); return nil })
	c.add(func() error { order = append(order, 2); return assert.AnError })

	err := c.close()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
}
