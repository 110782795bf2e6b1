// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - CatalogStore: Collections and source documents
//   - IndexStateStore: Document jobs and collection index statuses
//   - VectorIndex: Segments with embeddings and exact cosine search
//   - Cache: Expiring key-value entries
//   - SchedulerStore: Scheduled task state and history
//
// # Locking
//
// Job transitions are conditional UPDATEs (for example
// "SET status = 'processing' WHERE status = 'pending'"), so only one
// worker can win a document, even across processes sharing the file.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.coursemind/data/coursemind.db
package sqlite
