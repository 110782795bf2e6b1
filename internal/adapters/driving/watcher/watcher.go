// Package watcher keeps collections in sync with a folder of course files.
//
// The folder layout is <root>/<collection>/<file>. Each sub-directory is a
// collection, created on first sight. New or changed files are registered
// in the catalog and their collection is re-indexed once the folder has
// been quiet for the debounce interval.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// DefaultDebounce is how long the folder must be quiet before indexing.
const DefaultDebounce = 2 * time.Second

// DefaultExtensions are the file types registered by default.
var DefaultExtensions = []string{".pdf", ".txt", ".md"}

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher registers files under a root folder and indexes their collections.
type Watcher struct {
	root       string
	catalog    driving.CatalogService
	indexing   driving.IndexingService
	debounce   time.Duration
	extensions map[string]bool
	ignore     []string

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
	dirty  map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a collection is indexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions replaces the accepted file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.extensions[strings.ToLower(e)] = true
		}
	}
}

// WithIgnore skips files whose slash-separated path below the root
// matches any of the doublestar patterns, e.g. "*/drafts_*" or
// "**/*.solutions.pdf". Invalid patterns are dropped with a warning.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				logger.Warn("watch: ignoring invalid pattern %q", p)
				continue
			}
			w.ignore = append(w.ignore, p)
		}
	}
}

// New creates a watcher for root.
func New(root string, catalog driving.CatalogService, indexing driving.IndexingService, opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		catalog:  catalog,
		indexing: indexing,
		debounce: DefaultDebounce,
		dirty:    make(map[string]struct{}),
	}
	WithExtensions(DefaultExtensions...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run scans the folder, indexes what it found and then follows changes
// until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		fsw.Close()
		return ErrClosed
	}
	w.fsw = fsw
	w.mu.Unlock()
	defer w.Close()

	if err := fsw.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	if err := w.Scan(ctx); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	if w.hasDirty() {
		arm()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ctx, event) {
				arm()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case <-timerC:
			timerC = nil
			w.flush(ctx)
		}
	}
}

// Close stops a running watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Scan registers every accepted file under the root and marks their
// collections for indexing. Collection directories are added to the
// running watch.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		w.scanCollection(ctx, filepath.Join(w.root, entry.Name()))
	}
	return nil
}

func (w *Watcher) scanCollection(ctx context.Context, dir string) {
	w.addWatch(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("watch: read %s: %v", dir, err)
		return
	}
	collectionID := filepath.Base(dir)
	for _, entry := range entries {
		if entry.IsDir() || !w.accepts(collectionID+"/"+entry.Name()) {
			continue
		}
		if err := w.register(ctx, collectionID, filepath.Join(dir, entry.Name())); err != nil {
			logger.Warn("watch: %v", err)
		}
	}
}

// handleEvent applies one filesystem event and reports whether a
// collection now needs indexing.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if isHidden(p) {
			return false
		}
	}

	switch len(parts) {
	case 1:
		// A new collection directory.
		if !event.Has(fsnotify.Create) {
			return false
		}
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		w.scanCollection(ctx, event.Name)
		return w.hasDirty()

	case 2:
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			logger.Info("watch: %s removed; its segments stay until the document is deleted", event.Name)
			return false
		}
		if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
			return false
		}
		if !w.accepts(parts[0] + "/" + parts[1]) {
			return false
		}
		if err := w.register(ctx, parts[0], event.Name); err != nil {
			logger.Warn("watch: %v", err)
			return false
		}
		return true

	default:
		return false
	}
}

// register upserts the file as a document of collectionID. The version is
// taken from the modification time and size.
func (w *Watcher) register(ctx context.Context, collectionID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	if err := w.ensureCollection(ctx, collectionID); err != nil {
		return err
	}

	doc, err := w.catalog.AddDocument(ctx, domain.SourceDocument{
		CollectionID: collectionID,
		Name:         info.Name(),
		SourceURL:    path,
		Version:      fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()),
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", path, err)
	}
	logger.Debug("watch: registered %s as %s", path, doc.ID)

	w.mu.Lock()
	w.dirty[collectionID] = struct{}{}
	w.mu.Unlock()
	return nil
}

func (w *Watcher) ensureCollection(ctx context.Context, id string) error {
	_, err := w.catalog.GetCollection(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get collection %s: %w", id, err)
	}

	_, err = w.catalog.AddCollection(ctx, domain.Collection{
		ID:      id,
		Name:    id,
		Subject: SubjectFromDir(id),
	})
	switch {
	case err == nil:
		logger.Info("watch: created collection %s", id)
	case !errors.Is(err, domain.ErrAlreadyExists):
		return fmt.Errorf("add collection %s: %w", id, err)
	}
	return nil
}

// flush indexes every collection changed since the last flush.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	ids := make([]string, 0, len(w.dirty))
	for id := range w.dirty {
		ids = append(ids, id)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		summary, err := w.indexing.IndexCollection(ctx, id)
		if err != nil {
			logger.Error("watch: index %s: %v", id, err)
			continue
		}
		logger.Info("watch: indexed %s: %d completed, %d failed", id, summary.Completed, summary.Failed)
	}
}

func (w *Watcher) addWatch(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if err := fsw.Add(dir); err != nil {
		logger.Warn("watch: add %s: %v", dir, err)
	}
}

func (w *Watcher) hasDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirty) > 0
}

// accepts reports whether rel, a <collection>/<file> path, should be
// registered.
func (w *Watcher) accepts(rel string) bool {
	name := path.Base(rel)
	if isHidden(name) || !w.extensions[strings.ToLower(path.Ext(name))] {
		return false
	}
	for _, p := range w.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// SubjectFromDir turns a directory name into a subject label:
// underscores and hyphens become spaces.
func SubjectFromDir(name string) string {
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}
