package driven

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// Parser extracts text and page offsets from raw document bytes.
// Parsing the same bytes twice yields the same result.
type Parser interface {
	// SupportedMIMETypes returns the MIME types this parser handles.
	SupportedMIMETypes() []string

	// Parse returns the text of the document. Unparseable content is
	// reported as *domain.ParseError; other errors may be transient.
	Parse(ctx context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error)
}

// ObjectStore fetches raw document bytes.
type ObjectStore interface {
	// Fetch returns the bytes behind sourceURL. Missing objects wrap
	// domain.ErrNotFound; retryable I/O errors wrap domain.ErrTransientProvider.
	Fetch(ctx context.Context, sourceURL string) (*domain.RawDocument, error)
}
