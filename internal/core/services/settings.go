package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir = "storage.data_dir"

	keyChunkSize      = "indexing.chunk_size"
	keyChunkOverlap   = "indexing.chunk_overlap"
	keyMaxParallel    = "indexing.max_parallel"
	keyFetchTimeout   = "indexing.fetch_timeout_seconds"
	keyParseTimeout   = "indexing.parse_timeout_seconds"
	keyEmbedTimeout   = "indexing.embed_timeout_seconds"
	keyPersistTimeout = "indexing.persist_timeout_seconds"

	keyRetryAttempts = "retry.max_attempts"
	keyRetryInitial  = "retry.initial_interval_ms"
	keyRetryMax      = "retry.max_interval_ms"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedRPS        = "embedding.requests_per_second"

	keyTopK     = "retrieval.top_k"
	keyMinScore = "retrieval.min_score"

	keyCacheBackend  = "cache.backend"
	keyRedisURL      = "cache.redis_url"
	keyEmbeddingTTL  = "cache.embedding_ttl_seconds"
	keyRetrievalTTL  = "cache.retrieval_ttl_seconds"
	keyVectorBackend = "vector.backend"
	keyPostgresDSN   = "vector.postgres_dsn"

	keyParserBackend = "parser.backend"
	keyParserBaseURL = "parser.base_url"
	keyParserAPIKey  = "parser.api_key"

	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"

	keySchedulerEnabled  = "scheduler.enabled"
	keySchedulerInterval = "scheduler.interval_minutes"
)

// Environment variables that take precedence over the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvPostgresDSN  = "COURSEMIND_PG_DSN"
	EnvRedisURL     = "COURSEMIND_REDIS_URL"
	EnvDataDir      = "COURSEMIND_DATA_DIR"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
)

var settingKinds = map[string]keyKind{
	keyDataDir:           kindString,
	keyChunkSize:         kindInt,
	keyChunkOverlap:      kindInt,
	keyMaxParallel:       kindInt,
	keyFetchTimeout:      kindInt,
	keyParseTimeout:      kindInt,
	keyEmbedTimeout:      kindInt,
	keyPersistTimeout:    kindInt,
	keyRetryAttempts:     kindInt,
	keyRetryInitial:      kindInt,
	keyRetryMax:          kindInt,
	keyEmbedProvider:     kindString,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keyEmbedDimensions:   kindInt,
	keyEmbedBatchSize:    kindInt,
	keyEmbedRPS:          kindFloat,
	keyTopK:              kindInt,
	keyMinScore:          kindFloat,
	keyCacheBackend:      kindString,
	keyRedisURL:          kindString,
	keyEmbeddingTTL:      kindInt,
	keyRetrievalTTL:      kindInt,
	keyVectorBackend:     kindString,
	keyPostgresDSN:       kindString,
	keyParserBackend:     kindString,
	keyParserBaseURL:     kindString,
	keyParserAPIKey:      kindString,
	keyLLMProvider:       kindString,
	keyLLMModel:          kindString,
	keyLLMBaseURL:        kindString,
	keyLLMAPIKey:         kindString,
	keyLLMMaxTokens:      kindInt,
	keyLLMTemperature:    kindFloat,
	keySchedulerEnabled:  kindBool,
	keySchedulerInterval: kindInt,
}

// SettingsService reads and writes application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// LoadSettings builds settings from the config store, environment and defaults.
func LoadSettings(configStore driven.ConfigStore) domain.Settings {
	return NewSettingsService(configStore).Get()
}

// Get returns the effective settings. Missing or invalid values fall back
// to defaults; environment variables win over the file.
func (s *SettingsService) Get() domain.Settings {
	d := domain.DefaultSettings()

	settings := domain.Settings{
		DataDir: s.getString(keyDataDir, d.DataDir),
		Indexing: domain.IndexingSettings{
			ChunkSize:      s.getInt(keyChunkSize, d.Indexing.ChunkSize),
			ChunkOverlap:   s.getNonNegative(keyChunkOverlap, d.Indexing.ChunkOverlap),
			MaxParallel:    s.getInt(keyMaxParallel, d.Indexing.MaxParallel),
			FetchTimeout:   s.getSeconds(keyFetchTimeout, d.Indexing.FetchTimeout),
			ParseTimeout:   s.getSeconds(keyParseTimeout, d.Indexing.ParseTimeout),
			EmbedTimeout:   s.getSeconds(keyEmbedTimeout, d.Indexing.EmbedTimeout),
			PersistTimeout: s.getSeconds(keyPersistTimeout, d.Indexing.PersistTimeout),
		},
		Retry: domain.RetrySettings{
			MaxAttempts:     s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			InitialInterval: s.getMillis(keyRetryInitial, d.Retry.InitialInterval),
			MaxInterval:     s.getMillis(keyRetryMax, d.Retry.MaxInterval),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getNonNegative(keyEmbedDimensions, 0),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:     s.getInt(keyTopK, d.Retrieval.TopK),
			MinScore: s.getMinScore(d.Retrieval.MinScore),
		},
		Cache: domain.CacheSettings{
			Backend:      domain.CacheBackend(s.getChoice(keyCacheBackend, string(d.Cache.Backend), cacheBackends)),
			RedisURL:     s.configStore.GetString(keyRedisURL),
			EmbeddingTTL: s.getSeconds(keyEmbeddingTTL, d.Cache.EmbeddingTTL),
			RetrievalTTL: s.getSeconds(keyRetrievalTTL, d.Cache.RetrievalTTL),
		},
		Vector: domain.VectorSettings{
			Backend:     domain.VectorBackend(s.getChoice(keyVectorBackend, string(d.Vector.Backend), vectorBackends)),
			PostgresDSN: s.configStore.GetString(keyPostgresDSN),
		},
		Parser: domain.ParserSettings{
			Backend: domain.ParserBackend(s.getChoice(keyParserBackend, string(d.Parser.Backend), parserBackends)),
			BaseURL: s.configStore.GetString(keyParserBaseURL),
			APIKey:  s.configStore.GetString(keyParserAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
		},
		Scheduler: domain.SchedulerConfig{
			Enabled:  s.getBool(keySchedulerEnabled, d.Scheduler.Enabled),
			Interval: s.getMinutes(keySchedulerInterval, d.Scheduler.Interval),
		},
	}

	if !settings.Embedding.Provider.SupportsEmbeddings() {
		settings.Embedding.Provider = d.Embedding.Provider
	}
	settings.Embedding.Model = s.configStore.GetString(keyEmbedModel)
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}

	// The default model belongs to the default provider; others use their adapter default.
	settings.LLM.Model = s.configStore.GetString(keyLLMModel)
	if settings.LLM.Model == "" && settings.LLM.Provider == d.LLM.Provider {
		settings.LLM.Model = d.LLM.Model
	}

	s.applyEnv(&settings)
	return settings
}

func (s *SettingsService) applyEnv(settings *domain.Settings) {
	if key := s.getenv(EnvOpenAIKey); key != "" {
		if settings.Embedding.Provider == domain.AIProviderOpenAI {
			settings.Embedding.APIKey = key
		}
		if settings.LLM.Provider == domain.AIProviderOpenAI {
			settings.LLM.APIKey = key
		}
	}
	if key := s.getenv(EnvAnthropicKey); key != "" && settings.LLM.Provider == domain.AIProviderAnthropic {
		settings.LLM.APIKey = key
	}
	if dsn := s.getenv(EnvPostgresDSN); dsn != "" {
		settings.Vector.PostgresDSN = dsn
	}
	if url := s.getenv(EnvRedisURL); url != "" {
		settings.Cache.RedisURL = url
	}
	if dir := s.getenv(EnvDataDir); dir != "" {
		settings.DataDir = dir
	}
}

// Set parses value according to the key's type, stores it and persists
// the file if the resulting settings are valid.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if err := ValidateSettings(s.Get()); err != nil {
		// Drop the unsaved change.
		_ = s.configStore.Load()
		return err
	}
	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigPath returns where settings are stored.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// ValidateSettings reports combinations that cannot be wired.
//
//nolint:gocyclo // one check per setting group
func ValidateSettings(st domain.Settings) error {
	var problems []string
	if st.Indexing.ChunkSize <= 0 {
		problems = append(problems, "indexing.chunk_size must be positive")
	}
	if st.Indexing.ChunkOverlap >= st.Indexing.ChunkSize {
		problems = append(problems, "indexing.chunk_overlap must be smaller than indexing.chunk_size")
	}
	if st.Indexing.MaxParallel <= 0 {
		problems = append(problems, "indexing.max_parallel must be positive")
	}
	if st.Retry.MaxAttempts <= 0 {
		problems = append(problems, "retry.max_attempts must be positive")
	}
	if st.Retry.MaxInterval < st.Retry.InitialInterval {
		problems = append(problems, "retry.max_interval_ms must not be below retry.initial_interval_ms")
	}
	if st.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if st.Cache.Backend == domain.CacheRedis && st.Cache.RedisURL == "" {
		problems = append(problems, "cache.redis_url is required for the redis backend")
	}
	if st.Vector.Backend == domain.VectorPgvector && st.Vector.PostgresDSN == "" {
		problems = append(problems, "vector.postgres_dsn is required for the pgvector backend")
	}
	if st.Parser.Backend == domain.ParserHTTP && st.Parser.BaseURL == "" {
		problems = append(problems, "parser.base_url is required for the http parser")
	}
	if st.LLM.MaxTokens < 0 {
		problems = append(problems, "llm.max_tokens must not be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
}

var (
	cacheBackends = []string{
		string(domain.CacheMemory), string(domain.CacheSQLite), string(domain.CacheRedis), string(domain.CacheNone),
	}
	vectorBackends = []string{string(domain.VectorSQLite), string(domain.VectorPgvector)}
	parserBackends = []string{string(domain.ParserPDFToText), string(domain.ParserHTTP)}
)

func parseSetting(kind keyKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(strings.TrimSpace(value))
	case kindFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case kindBool:
		return strconv.ParseBool(strings.TrimSpace(value))
	default:
		return value, nil
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getNonNegative(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	val := s.configStore.GetFloat(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getMinScore(defaultVal float64) float64 {
	val := s.getFloat(keyMinScore, defaultVal)
	if val > 1 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	return s.getDuration(key, time.Second, defaultVal)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	return s.getDuration(key, time.Millisecond, defaultVal)
}

func (s *SettingsService) getMinutes(key string, defaultVal time.Duration) time.Duration {
	return s.getDuration(key, time.Minute, defaultVal)
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * unit
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(strings.ToLower(val))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getChoice(key, defaultVal string, allowed []string) string {
	val := strings.ToLower(s.configStore.GetString(key))
	for _, a := range allowed {
		if val == a {
			return val
		}
	}
	return defaultVal
}
