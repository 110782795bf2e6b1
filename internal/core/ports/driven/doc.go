// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CatalogStore: Collections and the documents that belong to them
//   - IndexStateStore: Document jobs and collection index statuses
//   - VectorIndex: Segment persistence and cosine similarity search
//   - EmbeddingProvider: Turns text into vectors
//   - ObjectStore: Fetches raw document bytes
//   - Parser: Extracts text and page offsets from raw bytes
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Cache: Memoises embeddings and retrieval results. Without it every
//     call recomputes; results are identical.
//   - LLMService: Generates answers. Without it only retrieval is available.
//   - SchedulerStore: Persists scheduler state. Without it tasks start fresh.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
