// Package parser selects a document parser by MIME type.
package parser

import (
	"context"
	"mime"
	"sort"
	"strings"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.Parser = (*Registry)(nil)

// Registry maps MIME types to parsers. It is itself a driven.Parser.
type Registry struct {
	parsers map[string]driven.Parser
}

// NewRegistry creates a registry and registers each parser for the types
// it supports. Later parsers win on overlap.
func NewRegistry(parsers ...driven.Parser) *Registry {
	r := &Registry{parsers: make(map[string]driven.Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds p for every MIME type it supports.
func (r *Registry) Register(p driven.Parser) {
	for _, t := range p.SupportedMIMETypes() {
		r.parsers[normalise(t)] = p
	}
}

// Lookup returns the parser for a MIME type.
func (r *Registry) Lookup(mimeType string) (driven.Parser, bool) {
	p, ok := r.parsers[normalise(mimeType)]
	return p, ok
}

// SupportedMIMETypes returns all registered types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Parse dispatches on raw.MIMEType. Unsupported types are parse errors.
func (r *Registry) Parse(ctx context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	p, ok := r.Lookup(raw.MIMEType)
	if !ok {
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: "unsupported content type " + raw.MIMEType}
	}
	return p.Parse(ctx, raw)
}

// normalise drops parameters such as charset and lowercases the type.
func normalise(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}
