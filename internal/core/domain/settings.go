package domain

import "time"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API (LLM only).
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider can embed text.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IndexingSettings controls segmentation and the worker pool.
type IndexingSettings struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxParallel    int
	FetchTimeout   time.Duration
	ParseTimeout   time.Duration
	EmbedTimeout   time.Duration
	PersistTimeout time.Duration
}

// RetrySettings bounds retries of external calls.
type RetrySettings struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the known model dimension.
	Dimensions int

	// BatchSize caps texts per provider call.
	BatchSize int

	// RequestsPerSecond throttles provider calls.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings holds query defaults.
type RetrievalSettings struct {
	TopK     int
	MinScore float64
}

// CacheBackend selects where cache entries live.
type CacheBackend string

// Available cache backends.
const (
	CacheMemory CacheBackend = "memory"
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
	CacheNone   CacheBackend = "none"
)

// CacheSettings holds cache configuration.
type CacheSettings struct {
	Backend      CacheBackend
	RedisURL     string
	EmbeddingTTL time.Duration
	RetrievalTTL time.Duration
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorSQLite   VectorBackend = "sqlite"
	VectorPgvector VectorBackend = "pgvector"
)

// VectorSettings holds vector index configuration.
type VectorSettings struct {
	Backend     VectorBackend
	PostgresDSN string
}

// ParserBackend selects how PDFs become text.
type ParserBackend string

// Available parser backends.
const (
	ParserPDFToText ParserBackend = "pdftotext"
	ParserHTTP      ParserBackend = "http"
)

// ParserSettings holds document parser configuration.
type ParserSettings struct {
	Backend ParserBackend
	BaseURL string
	APIKey  string
}

// LLMSettings holds generation configuration.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// IsConfigured returns true if an LLM can be called.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	return !l.Provider.RequiresAPIKey() || l.APIKey != ""
}

// Settings holds all application settings.
type Settings struct {
	DataDir   string
	Indexing  IndexingSettings
	Retry     RetrySettings
	Embedding EmbeddingSettings
	Retrieval RetrievalSettings
	Cache     CacheSettings
	Vector    VectorSettings
	Parser    ParserSettings
	LLM       LLMSettings
	Scheduler SchedulerConfig
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Indexing: IndexingSettings{
			ChunkSize:      1000,
			ChunkOverlap:   200,
			MaxParallel:    4,
			FetchTimeout:   60 * time.Second,
			ParseTimeout:   120 * time.Second,
			EmbedTimeout:   60 * time.Second,
			PersistTimeout: 30 * time.Second,
		},
		Retry: RetrySettings{
			MaxAttempts:     5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOpenAI,
			Model:             "text-embedding-3-large",
			BatchSize:         100,
			RequestsPerSecond: 3,
		},
		Retrieval: RetrievalSettings{
			TopK:     5,
			MinScore: 0.3,
		},
		Cache: CacheSettings{
			Backend:      CacheSQLite,
			EmbeddingTTL: 24 * time.Hour,
			RetrievalTTL: 10 * time.Minute,
		},
		Vector: VectorSettings{
			Backend: VectorSQLite,
		},
		Parser: ParserSettings{
			Backend: ParserPDFToText,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-large",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
