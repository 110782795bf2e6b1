package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.coursemind/data/coursemind.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".coursemind", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "coursemind.db")

	// WAL for concurrent readers; immediate transactions so writers queue on
	// busy_timeout instead of failing on lock upgrade. Pragmas in the DSN
	// apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CatalogStore returns a CatalogStore backed by this store.
func (s *Store) CatalogStore() driven.CatalogStore {
	return &catalogStore{store: s}
}

// IndexStateStore returns an IndexStateStore backed by this store.
func (s *Store) IndexStateStore() driven.IndexStateStore {
	return &stateStore{store: s}
}

// VectorIndex returns a VectorIndex backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// Cache returns a Cache backed by this store.
func (s *Store) Cache() *Cache {
	return &Cache{store: s, now: time.Now}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Catalog Store ====================

// catalogStore implements driven.CatalogStore.
type catalogStore struct {
	store *Store
}

var _ driven.CatalogStore = (*catalogStore)(nil)

// SaveCollection stores or updates a collection.
func (s *catalogStore) SaveCollection(ctx context.Context, c domain.Collection) error {
	if c.ID == "" {
		return domain.ErrInvalidInput
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, subject, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			subject = excluded.subject
	`, c.ID, c.Name, c.Subject, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// GetCollection retrieves a collection by ID.
func (s *catalogStore) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, subject, created_at FROM collections WHERE id = ?
	`, id)

	var c domain.Collection
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &c.Subject, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCollections returns all collections ordered by ID.
func (s *catalogStore) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, subject, created_at FROM collections ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var out []domain.Collection //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Collection
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return out, nil
}

// SaveDocument stores or updates a document.
func (s *catalogStore) SaveDocument(ctx context.Context, doc domain.SourceDocument) error {
	if doc.ID == "" || doc.CollectionID == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO source_documents
			(id, collection_id, name, title, source_url, subject, topic, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection_id = excluded.collection_id,
			name = excluded.name,
			title = excluded.title,
			source_url = excluded.source_url,
			subject = excluded.subject,
			topic = excluded.topic,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, doc.ID, doc.CollectionID, doc.Name, doc.Title, doc.SourceURL, doc.Subject, doc.Topic,
		doc.Version, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return fmt.Errorf("collection %s: %w", doc.CollectionID, domain.ErrNotFound)
		}
		if isConstraint(err, "UNIQUE") {
			return fmt.Errorf("document %s in %s: %w", doc.SourceURL, doc.CollectionID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *catalogStore) GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, collection_id, name, title, source_url, subject, topic, version, created_at, updated_at
		FROM source_documents WHERE id = ?
	`, id)

	doc, err := scanSourceDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns the documents of a collection ordered by ID.
func (s *catalogStore) ListDocuments(ctx context.Context, collectionID string) ([]domain.SourceDocument, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, collection_id, name, title, source_url, subject, topic, version, created_at, updated_at
		FROM source_documents WHERE collection_id = ? ORDER BY id
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.SourceDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanSourceDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document.
func (s *catalogStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM source_documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSourceDocument(row scanner) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.CollectionID, &doc.Name, &doc.Title, &doc.SourceURL,
		&doc.Subject, &doc.Topic, &doc.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// formatTime renders t in UTC with a fixed width.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatNullableTime returns nil for the zero time.
func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// parseTime returns the zero time for empty or malformed values.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}
		}
	}
	return t
}

// parseNullableTime parses a nullable timestamp column.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return parseTime(s.String)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isConstraint reports whether err is a violated constraint of the given
// kind ("FOREIGN KEY", "UNIQUE", ...).
func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}
