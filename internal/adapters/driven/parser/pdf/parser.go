// Package pdf extracts text from PDF files with poppler's pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// MIMEType is the only type this parser handles.
const MIMEType = "application/pdf"

const toolName = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Parser converts PDF bytes to text, one form feed per page.
type Parser struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// New creates a parser that shells out to pdftotext.
func New() *Parser {
	return &Parser{runner: execRunner{}, lookPath: exec.LookPath}
}

// NewWithRunner creates a parser with an injected command runner.
func NewWithRunner(runner CommandRunner) *Parser {
	return &Parser{
		runner:   runner,
		lookPath: func(string) (string, error) { return toolName, nil },
	}
}

// CheckAvailable returns ErrPDFToolNotFound if pdftotext is not installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions explains how to install pdftotext.
func InstallInstructions() string {
	return `PDF parsing requires pdftotext (poppler):
  macOS:          brew install poppler
  Debian/Ubuntu:  apt install poppler-utils
  Fedora:         dnf install poppler-utils`
}

// SupportedMIMETypes returns the MIME types this parser handles.
func (p *Parser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Parse writes the PDF to a temp file, runs pdftotext and splits the
// output into pages on form feeds.
func (p *Parser) Parse(ctx context.Context, raw *domain.RawDocument) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !bytes.HasPrefix(raw.Content, []byte("%PDF-")) {
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: "not a PDF file"}
	}
	if _, err := p.lookPath(toolName); err != nil {
		return nil, ErrPDFToolNotFound
	}

	tmp, err := os.CreateTemp("", "coursemind-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw.Content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, toolName, "-enc", "UTF-8", "-layout", tmp.Name(), "-")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: "pdftotext failed", Err: err}
	}

	doc := splitPages(string(out))
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &domain.ParseError{Source: raw.SourceURL, Reason: "no extractable text"}
	}
	return doc, nil
}

// splitPages joins form-feed separated pages with newlines and records the
// rune offset at which each page starts.
func splitPages(out string) *domain.ParsedDocument {
	out = strings.ToValidUTF8(out, "")
	pages := strings.Split(out, "\f")
	// pdftotext ends the last page with a form feed.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	var text strings.Builder
	offsets := make([]domain.PageOffset, 0, len(pages))
	offset := 0
	for i, page := range pages {
		page = strings.TrimRight(page, " \t\r\n")
		if i > 0 {
			text.WriteString("\n")
			offset++
		}
		offsets = append(offsets, domain.PageOffset{Offset: offset, Page: i + 1})
		text.WriteString(page)
		offset += utf8.RuneCountInString(page)
	}
	return &domain.ParsedDocument{Text: text.String(), Pages: offsets}
}
