package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/retry"
)

// --- Mock implementations for service testing ---

// vocabulary gives the mock provider one dimension per word. Text with
// none of the words lands on the extra last dimension.
var vocabulary = []string{
	"limit", "derivative", "integral", "matrix", "vector", "force", "energy", "photosynthesis",
}

// mockProvider embeds text as word counts over vocabulary.
type mockProvider struct {
	dims     int
	maxBatch int

	mu      sync.Mutex
	batches [][]string

	// failures is how many calls fail with failErr before succeeding.
	failures atomic.Int32
	failErr  error

	// failOnCall makes the n-th call (1-based) fail with failErr.
	failOnCall int

	// shortBy drops this many vectors from every result.
	shortBy int

	// returnDims overrides the length of returned vectors.
	returnDims int
}

func newMockProvider() *mockProvider {
	return &mockProvider{dims: len(vocabulary) + 1, maxBatch: 16}
}

func (m *mockProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	call := len(m.batches)
	m.mu.Unlock()

	if m.failOnCall > 0 && call == m.failOnCall {
		return nil, m.failErr
	}
	if m.failures.Load() > 0 {
		m.failures.Add(-1)
		return nil, m.failErr
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	return out[:len(out)-min(m.shortBy, len(out))], nil
}

func (m *mockProvider) vector(text string) []float32 {
	dims := m.dims
	if m.returnDims > 0 {
		dims = m.returnDims
	}
	v := make([]float32, dims)
	lower := strings.ToLower(text)
	hit := false
	for i, word := range vocabulary {
		if i >= dims-1 {
			break
		}
		if n := strings.Count(lower, word); n > 0 {
			v[i] = float32(n)
			hit = true
		}
	}
	if !hit {
		v[dims-1] = 1
	}
	return v
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockProvider) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (m *mockProvider) Dimensions() int            { return m.dims }
func (m *mockProvider) ModelName() string          { return "mock-embed" }
func (m *mockProvider) MaxBatchSize() int          { return m.maxBatch }
func (m *mockProvider) Ping(context.Context) error { return nil }
func (m *mockProvider) Close() error               { return nil }

// mockObjectStore serves documents from memory.
type mockObjectStore struct {
	mu       sync.Mutex
	docs     map[string]string
	errs     map[string]error
	failures map[string]int
	fetches  map[string]int
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		docs:     make(map[string]string),
		errs:     make(map[string]error),
		failures: make(map[string]int),
		fetches:  make(map[string]int),
	}
}

func (m *mockObjectStore) put(url, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[url] = text
}

func (m *mockObjectStore) Fetch(_ context.Context, url string) (*domain.RawDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[url]++
	if m.failures[url] > 0 {
		m.failures[url]--
		return nil, domain.ErrTransientProvider
	}
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	text, ok := m.docs[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.RawDocument{SourceURL: url, MIMEType: "text/plain", Content: []byte(text)}, nil
}

// mockParser returns the content as a single page. When gate is set,
// Parse signals started and waits for the gate to close.
type mockParser struct {
	errs    map[string]error
	gate    chan struct{}
	started chan string
}

func newMockParser() *mockParser {
	return &mockParser{errs: make(map[string]error)}
}

func (m *mockParser) block() {
	m.gate = make(chan struct{})
	m.started = make(chan string, 16)
}

func (m *mockParser) SupportedMIMETypes() []string { return []string{"text/plain"} }

func (m *mockParser) Parse(_ context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error) {
	if m.gate != nil {
		m.started <- raw.SourceURL
		<-m.gate
	}
	if err := m.errs[raw.SourceURL]; err != nil {
		return nil, err
	}
	text := string(raw.Content)
	if strings.TrimSpace(text) == "" {
		return &domain.ParsedDocument{}, nil
	}
	return &domain.ParsedDocument{Text: text, Pages: []domain.PageOffset{{Offset: 0, Page: 1}}}, nil
}

// failingVectorIndex wraps an index and fails searches.
type failingVectorIndex struct {
	driven.VectorIndex
	searchErr error
}

func (f *failingVectorIndex) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.VectorIndex.Search(ctx, q)
}

// mockLLM records the messages it is sent.
type mockLLM struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	opts     driven.ChatOptions
	reply    string
	err      error
}

func (m *mockLLM) Chat(_ context.Context, messages []domain.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append([]domain.ChatMessage(nil), messages...)
	m.opts = opts
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

// mockPromptStore serves prompts from a map.
type mockPromptStore map[string]string

func (m mockPromptStore) Load(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

// mockIndexing implements driving.IndexingService for scheduler tests.
type mockIndexing struct {
	driving.IndexingService

	calls     atomic.Int32
	summaries []domain.IndexSummary
	err       error
}

func (m *mockIndexing) IndexPending(context.Context) ([]domain.IndexSummary, error) {
	m.calls.Add(1)
	return m.summaries, m.err
}

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingProvider = (*mockProvider)(nil)
	_ driven.ObjectStore       = (*mockObjectStore)(nil)
	_ driven.Parser            = (*mockParser)(nil)
	_ driven.LLMService        = (*mockLLM)(nil)
	_ driven.PromptStore       = mockPromptStore(nil)
	_ driving.IndexingService  = (*mockIndexing)(nil)
)

// fastRetry keeps retry waits out of test time.
var fastRetry = domain.RetrySettings{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func fastPolicy() retry.Policy {
	return retry.FromSettings(fastRetry, 0)
}

var errBoom = errors.New("boom")

// testEnv wires an orchestrator and retrieval service over memory stores.
type testEnv struct {
	catalog  *memory.CatalogStore
	state    *memory.IndexStateStore
	vectors  *memory.VectorIndex
	cache    *memory.Cache
	objects  *mockObjectStore
	parser   *mockParser
	provider *mockProvider

	catalogSvc *CatalogService
	embedder   *EmbeddingClient
	indexer    *IndexingOrchestrator
	retrieval  *RetrievalService
}

func newTestEnv(t *testing.T, maxParallel int) *testEnv {
	t.Helper()
	env := &testEnv{
		catalog:  memory.NewCatalogStore(),
		state:    memory.NewIndexStateStore(),
		vectors:  memory.NewVectorIndex(),
		cache:    memory.NewCache(),
		objects:  newMockObjectStore(),
		parser:   newMockParser(),
		provider: newMockProvider(),
	}
	env.catalogSvc = NewCatalogService(env.catalog)
	env.embedder = NewEmbeddingClient(env.provider,
		WithEmbeddingCache(env.cache, time.Hour),
		WithRetryPolicy(fastPolicy()),
	)
	env.indexer = env.newIndexer(t, env.embedder, maxParallel)
	env.retrieval = NewRetrievalService(env.embedder, env.vectors,
		WithRetrievalCache(env.cache, time.Minute),
		WithRetrievalDefaults(domain.RetrievalSettings{TopK: 5, MinScore: 0.3}),
	)
	return env
}

func (env *testEnv) newIndexer(t *testing.T, embedder *EmbeddingClient, maxParallel int) *IndexingOrchestrator {
	t.Helper()
	settings := domain.DefaultSettings().Indexing
	settings.MaxParallel = maxParallel
	indexer, err := NewIndexingOrchestrator(env.catalog, env.state, env.vectors, env.objects, env.parser, embedder,
		WithIndexingSettings(settings),
		WithIndexingRetry(fastRetry),
		WithInvalidationCache(env.cache),
	)
	require.NoError(t, err)
	return indexer
}

func (env *testEnv) addCollection(t *testing.T, id, subject string) {
	t.Helper()
	_, err := env.catalogSvc.AddCollection(context.Background(), domain.Collection{ID: id, Name: "Course " + id, Subject: subject})
	require.NoError(t, err)
}

// addDocument registers a document served with text and returns its ID.
func (env *testEnv) addDocument(t *testing.T, collectionID, url, text, version string) string {
	t.Helper()
	env.objects.put(url, text)
	doc, err := env.catalogSvc.AddDocument(context.Background(), domain.SourceDocument{
		CollectionID: collectionID,
		SourceURL:    url,
		Version:      version,
	})
	require.NoError(t, err)
	return doc.ID
}
