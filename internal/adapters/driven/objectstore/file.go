package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.ObjectStore = (*FileStore)(nil)

// FileStore reads documents from the local filesystem.
// Relative paths resolve against Root.
type FileStore struct {
	Root string
}

// NewFileStore creates a file store. An empty root means the working directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// Fetch reads a path or file:// URL.
func (s *FileStore) Fetch(ctx context.Context, sourceURL string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := LocalPath(sourceURL)
	if !filepath.IsAbs(path) && s.Root != "" {
		path = filepath.Join(s.Root, path)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", sourceURL, domain.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%s: %w: %w", sourceURL, domain.ErrPermanentInput, err)
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", sourceURL, domain.ErrTransientProvider, err)
	case info.IsDir():
		return nil, fmt.Errorf("%s: %w: is a directory", sourceURL, domain.ErrPermanentInput)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", sourceURL, domain.ErrTransientProvider, err)
	}

	return &domain.RawDocument{
		SourceURL: sourceURL,
		MIMEType:  DetectMIMEType(path, content),
		Content:   content,
	}, nil
}

// LocalPath strips a file:// prefix.
func LocalPath(sourceURL string) string {
	return strings.TrimPrefix(sourceURL, "file://")
}
