// Package mcp provides an MCP (Model Context Protocol) server adapter for coursemind.
// It lets AI assistants retrieve course material and check indexing progress.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
