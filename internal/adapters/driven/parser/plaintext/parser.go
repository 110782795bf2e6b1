// Package plaintext parses UTF-8 text and markdown notes.
package plaintext

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// Parser returns the content unchanged. Text has no pages.
type Parser struct{}

// New creates a plain text parser.
func New() *Parser {
	return &Parser{}
}

// SupportedMIMETypes returns the MIME types this parser handles.
func (p *Parser) SupportedMIMETypes() []string {
	return []string{"text/plain", "text/markdown", "text/csv"}
}

// Parse rejects content that is not valid UTF-8.
func (p *Parser) Parse(_ context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: "content is not valid UTF-8"}
	}
	return &domain.ParsedDocument{Text: string(raw.Content)}, nil
}
