// Package httpparse sends documents to a remote parsing service.
//
// The service accepts the raw bytes as the request body and answers with
// JSON: {"pages": [{"page": 1, "text": "..."}]}. A 422 response means the
// document cannot be parsed.
package httpparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/ratelimit"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// DefaultTimeout bounds one parse request.
const DefaultTimeout = 120 * time.Second

// Config holds configuration for the remote parser.
type Config struct {
	// BaseURL is the service root; requests go to BaseURL + "/parse".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// MIMETypes lists the types to route here (default: application/pdf).
	MIMETypes []string

	Timeout time.Duration
}

// Parser calls a remote parse service.
type Parser struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	mimeTypes []string
}

type page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type parseResponse struct {
	Pages []page `json:"pages"`
	Error string `json:"error,omitempty"`
}

// New creates a remote parser.
func New(cfg Config) (*Parser, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpparse: %w: base URL is required", domain.ErrInvalidInput)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.MIMETypes) == 0 {
		cfg.MIMETypes = []string{"application/pdf"}
	}
	return &Parser{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		mimeTypes: cfg.MIMETypes,
	}, nil
}

// SupportedMIMETypes returns the MIME types this parser handles.
func (p *Parser) SupportedMIMETypes() []string {
	return p.mimeTypes
}

// Parse posts the document and assembles pages in page order.
func (p *Parser) Parse(ctx context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", raw.MIMEType)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ratelimit.TransportError(ctx, "parser", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ratelimit.TransportError(ctx, "parser", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusUnsupportedMediaType {
		var pr parseResponse
		reason := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &pr) == nil && pr.Error != "" {
			reason = pr.Error
		}
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: reason}
	}
	if err := ratelimit.CheckResponse("parser", resp, body); err != nil {
		return nil, err
	}

	var pr parseResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("parser: decode response: %w", err)
	}
	return assemble(pr), nil
}

func assemble(pr parseResponse) *domain.ParsedDocument {
	var text strings.Builder
	pages := make([]domain.PageOffset, 0, len(pr.Pages))
	offset := 0
	for i, pg := range pr.Pages {
		if i > 0 {
			text.WriteString("\n")
			offset++
		}
		number := pg.Page
		if number == 0 {
			number = i + 1
		}
		pages = append(pages, domain.PageOffset{Offset: offset, Page: number})
		text.WriteString(pg.Text)
		offset += utf8.RuneCountInString(pg.Text)
	}
	return &domain.ParsedDocument{Text: text.String(), Pages: pages}
}
