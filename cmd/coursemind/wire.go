package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/coursemind/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/config/file"
	ollamaembed "github.com/custodia-labs/coursemind/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/coursemind/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/coursemind/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/coursemind/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/objectstore"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/parser"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/parser/httpparse"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/parser/pdf"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/parser/plaintext"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/coursemind/internal/adapters/driving/cli"
	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/services"
	"github.com/custodia-labs/coursemind/internal/logger"
	"github.com/custodia-labs/coursemind/internal/retry"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires every adapter from the settings in configDir.
func build(ctx context.Context, configDir string) (_ *cli.Services, err error) {
	var cleanup closers
	defer func() {
		if err != nil {
			_ = cleanup.close()
		}
	}()

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	settingsSvc := services.NewSettingsService(configStore)
	settings := settingsSvc.Get()

	promptDir := ""
	if configDir != "" {
		promptDir = filepath.Join(configDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	// ==================== Storage ====================

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	cleanup.add(store.Close)
	logger.Debug("storage: %s", store.Path())

	vectors, err := buildVectorIndex(ctx, settings.Vector, store, &cleanup)
	if err != nil {
		return nil, err
	}

	cache, err := buildCache(ctx, settings.Cache, store, &cleanup)
	if err != nil {
		return nil, err
	}

	// ==================== Providers ====================

	provider, err := buildEmbeddingProvider(settings.Embedding, settings.Indexing.EmbedTimeout)
	if err != nil {
		return nil, err
	}

	docParser, err := buildParser(settings.Parser, settings.Indexing.ParseTimeout)
	if err != nil {
		return nil, err
	}

	llm, llmErr := buildLLM(settings.LLM)
	if llmErr != nil {
		logger.Warn("llm disabled: %v", llmErr)
	}

	objects := objectstore.NewMux(objectstore.NewFileStore(""), objectstore.NewHTTPStore())

	// ==================== Services ====================

	embedOpts := []services.EmbeddingOption{
		services.WithBatchSize(settings.Embedding.BatchSize),
		services.WithRetryPolicy(retry.FromSettings(settings.Retry, settings.Indexing.EmbedTimeout)),
	}
	if cache != nil {
		embedOpts = append(embedOpts, services.WithEmbeddingCache(cache, settings.Cache.EmbeddingTTL))
	}
	embedder := services.NewEmbeddingClient(provider, embedOpts...)

	indexOpts := []services.IndexingOption{
		services.WithIndexingSettings(settings.Indexing),
		services.WithIndexingRetry(settings.Retry),
	}
	retrievalOpts := []services.RetrievalOption{
		services.WithRetrievalDefaults(settings.Retrieval),
	}
	if cache != nil {
		indexOpts = append(indexOpts, services.WithInvalidationCache(cache))
		retrievalOpts = append(retrievalOpts, services.WithRetrievalCache(cache, settings.Cache.RetrievalTTL))
	}

	catalogStore := store.CatalogStore()
	indexing, err := services.NewIndexingOrchestrator(
		catalogStore, store.IndexStateStore(), vectors, objects, docParser, embedder, indexOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("indexing: %w", err)
	}
	retrieval := services.NewRetrievalService(embedder, vectors, retrievalOpts...)

	chatOpts := driven.ChatOptions{
		MaxTokens:   settings.LLM.MaxTokens,
		Temperature: settings.LLM.Temperature,
	}
	answers := services.NewAnswerService(retrieval, catalogStore, llm, prompts, chatOpts)

	scheduler := services.NewScheduler(settings.Scheduler, store.SchedulerStore(), indexing, indexing)

	return &cli.Services{
		Catalog:         services.NewCatalogService(catalogStore),
		Indexing:        indexing,
		Retrieval:       retrieval,
		Answer:          answers,
		Settings:        settingsSvc,
		Scheduler:       scheduler,
		SchedulerConfig: settings.Scheduler,
		Close:           cleanup.close,
	}, nil
}

func buildVectorIndex(
	ctx context.Context,
	cfg domain.VectorSettings,
	store *sqlite.Store,
	cleanup *closers,
) (driven.VectorIndex, error) {
	switch cfg.Backend {
	case domain.VectorPgvector:
		pg, err := pgvector.New(ctx, pgvector.Config{DSN: cfg.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("pgvector: %w", err)
		}
		cleanup.add(pg.Close)
		return pg, nil
	default:
		return store.VectorIndex(), nil
	}
}

// buildCache returns nil when caching is disabled.
func buildCache(
	ctx context.Context,
	cfg domain.CacheSettings,
	store *sqlite.Store,
	cleanup *closers,
) (driven.Cache, error) {
	switch cfg.Backend {
	case domain.CacheNone:
		return nil, nil
	case domain.CacheMemory:
		return memory.NewCache(), nil
	case domain.CacheRedis:
		c, err := redis.New(ctx, cfg.RedisURL, redis.WithNamespace("coursemind"))
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		cleanup.add(c.Close)
		return c, nil
	default:
		return store.Cache(), nil
	}
}

func buildEmbeddingProvider(cfg domain.EmbeddingSettings, timeout time.Duration) (driven.EmbeddingProvider, error) {
	dims := cfg.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[cfg.Model]
	}

	switch cfg.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingProvider(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    timeout,
			Dimensions: dims,
			BatchSize:  cfg.BatchSize,
		}), nil
	case domain.AIProviderOpenAI:
		p, err := openaiembed.NewEmbeddingProvider(openaiembed.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Timeout:           timeout,
			Dimensions:        cfg.Dimensions,
			BatchSize:         cfg.BatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("embedding: %w: provider %q cannot embed", domain.ErrInvalidInput, cfg.Provider)
	}
}

func buildParser(cfg domain.ParserSettings, timeout time.Duration) (driven.Parser, error) {
	var pdfParser driven.Parser = pdf.New()
	if cfg.Backend == domain.ParserHTTP {
		p, err := httpparse.New(httpparse.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("parser: %w", err)
		}
		pdfParser = p
	}
	return parser.NewRegistry(pdfParser, plaintext.New()), nil
}

// buildLLM returns an error when the configured provider cannot be used;
// answering is then unavailable but indexing and retrieval still work.
func buildLLM(cfg domain.LLMSettings) (driven.LLMService, error) {
	switch cfg.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	case domain.AIProviderOpenAI:
		s, err := openaillm.NewLLMService(openaillm.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.AIProviderAnthropic:
		s, err := anthropic.NewLLMService(anthropic.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}
