package cli

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

// ==================== Catalog ====================

type mockCatalog struct {
	mu          sync.Mutex
	collections map[string]domain.Collection
	documents   map[string]domain.SourceDocument
	err         error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		collections: make(map[string]domain.Collection),
		documents:   make(map[string]domain.SourceDocument),
	}
}

func (m *mockCatalog) AddCollection(_ context.Context, c domain.Collection) (*domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.collections[c.ID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.collections[c.ID] = c
	return &c, nil
}

func (m *mockCatalog) GetCollection(_ context.Context, id string) (*domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockCatalog) ListCollections(_ context.Context) ([]domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Collection, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCatalog) AddDocument(_ context.Context, doc domain.SourceDocument) (*domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.collections[doc.CollectionID]; !ok {
		return nil, domain.ErrNotFound
	}
	if doc.ID == "" {
		doc.ID = doc.CollectionID + "/" + doc.SourceURL
	}
	if doc.Name == "" {
		doc.Name = doc.SourceURL
	}
	m.documents[doc.ID] = doc
	return &doc, nil
}

func (m *mockCatalog) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (m *mockCatalog) ListDocuments(_ context.Context, collectionID string) ([]domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collectionID]; !ok {
		return nil, domain.ErrNotFound
	}
	var out []domain.SourceDocument
	for _, d := range m.documents {
		if d.CollectionID == collectionID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ==================== Indexing ====================

type mockIndexing struct {
	mu sync.Mutex

	summary *domain.IndexSummary
	run     *domain.IndexRun
	status  *domain.CollectionIndexStatus
	jobs    []domain.DocumentJob
	job     *domain.DocumentJob
	err     error

	indexed   []string
	retried   []string
	deleted   []string
	cancelled []string
}

func (m *mockIndexing) IndexCollection(_ context.Context, collectionID string) (*domain.IndexSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, collectionID)
	return m.summary, m.err
}

func (m *mockIndexing) StartCollectionIndex(_ context.Context, collectionID string) (*domain.IndexRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, collectionID)
	if m.err != nil {
		return nil, m.err
	}
	return m.run, nil
}

func (m *mockIndexing) Run(_ string) (*domain.IndexRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run, nil
}

func (m *mockIndexing) CancelRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, runID)
	return nil
}

func (m *mockIndexing) IndexPending(_ context.Context) ([]domain.IndexSummary, error) {
	return nil, m.err
}

func (m *mockIndexing) RetryDocument(_ context.Context, documentID string) (*domain.DocumentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried = append(m.retried, documentID)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.DocumentJob{DocumentID: documentID, CollectionID: "calc-101", Status: domain.JobPending}, nil
}

func (m *mockIndexing) RetryCollection(_ context.Context, collectionID string) (*domain.IndexSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried = append(m.retried, collectionID)
	return m.summary, m.err
}

func (m *mockIndexing) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, documentID)
	return m.err
}

func (m *mockIndexing) DocumentStatus(_ context.Context, _ string) (*domain.DocumentJob, error) {
	if m.job == nil {
		return nil, domain.ErrNotFound
	}
	return m.job, m.err
}

func (m *mockIndexing) CollectionStatus(
	_ context.Context, _ string,
) (*domain.CollectionIndexStatus, []domain.DocumentJob, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.status, m.jobs, nil
}

// ==================== Retrieval and answers ====================

type mockRetrieval struct {
	results     []domain.RetrievedSegment
	err         error
	lastQuery   domain.RetrievalQuery
	invalidated []string
}

func (m *mockRetrieval) Retrieve(_ context.Context, q domain.RetrievalQuery) ([]domain.RetrievedSegment, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetrieval) InvalidateCollection(_ context.Context, collectionID string) error {
	m.invalidated = append(m.invalidated, collectionID)
	return m.err
}

type mockAnswers struct {
	answer    *domain.Answer
	err       error
	lastQuery domain.RetrievalQuery
}

func (m *mockAnswers) Ask(_ context.Context, q domain.RetrievalQuery, _ []domain.ChatMessage) (*domain.Answer, error) {
	m.lastQuery = q
	return m.answer, m.err
}

// ==================== Settings ====================

type mockSettings struct {
	settings domain.Settings
	set      map[string]string
	err      error
}

func (m *mockSettings) Get() domain.Settings { return m.settings }

func (m *mockSettings) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) Keys() []string {
	return []string{"embedding.provider", "indexing.chunk_size"}
}

func (m *mockSettings) ConfigPath() string { return "/tmp/coursemind/config.toml" }

// ==================== Scheduler ====================

type mockScheduler struct {
	mu      sync.Mutex
	started bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) wasStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

var (
	_ driving.CatalogService   = (*mockCatalog)(nil)
	_ driving.IndexingService  = (*mockIndexing)(nil)
	_ driving.RetrievalService = (*mockRetrieval)(nil)
	_ driving.AnswerService    = (*mockAnswers)(nil)
	_ driving.SettingsService  = (*mockSettings)(nil)
	_ driving.Scheduler        = (*mockScheduler)(nil)
)

// testServices bundles the mocks behind app.
type testServices struct {
	catalog   *mockCatalog
	indexing  *mockIndexing
	retrieval *mockRetrieval
	answers   *mockAnswers
	settings  *mockSettings
	scheduler *mockScheduler
}

// setupTestServices installs mock services and returns a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		catalog:   newMockCatalog(),
		indexing:  &mockIndexing{},
		retrieval: &mockRetrieval{},
		answers:   &mockAnswers{},
		settings:  &mockSettings{settings: domain.DefaultSettings()},
		scheduler: &mockScheduler{},
	}
	ts.catalog.collections["calc-101"] = domain.Collection{ID: "calc-101", Name: "Calculus I", Subject: "Calculus"}

	original := app
	app = &Services{
		Catalog:   ts.catalog,
		Indexing:  ts.indexing,
		Retrieval: ts.retrieval,
		Answer:    ts.answers,
		Settings:  ts.settings,
		Scheduler: ts.scheduler,
	}
	return ts, func() { app = original }
}

// execute runs the root command with args and returns what it printed.
func execute(args ...string) (string, error) {
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
