// Package domain defines the core business entities for coursemind.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Collection: A named group of documents (a course)
//   - SourceDocument: A catalogued document awaiting or holding an index
//   - Segment: A bounded span of document text with its embedding
//   - DocumentJob: The indexing state of one document
//   - CollectionIndexStatus: Aggregated indexing state of a collection
//   - RetrievedSegment: A ranked, attributed search hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
