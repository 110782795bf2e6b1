package mcp

import (
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers retrieve tool calls.
	Retrieval driving.RetrievalService

	// Indexing reports job and collection state.
	Indexing driving.IndexingService

	// Catalog lists collections and documents.
	Catalog driving.CatalogService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	// Indexing and Catalog are optional; their tools and resources degrade.
	return nil
}
