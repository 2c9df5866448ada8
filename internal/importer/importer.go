// Package importer ingests text files dropped into watched directories as
// journal entries.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/indexer"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/storage"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester stores a file's text as a journal entry and indexes it.
type Ingester struct {
	storage storage.Storage
	indexer *indexer.Indexer
}

// NewIngester creates an ingester over the given storage and indexer.
func NewIngester(store storage.Storage, idx *indexer.Indexer) *Ingester {
	return &Ingester{storage: store, indexer: idx}
}

// IngestFile reads path and creates an indexed journal entry from it. The
// title is the file name without extension; the entry date is today. Each
// call creates a new entry; re-dropping a file imports it again.
func (g *Ingester) IngestFile(ctx context.Context, path string) (*models.JournalEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("import file %s is empty", path)
	}
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))

	now := time.Now().UTC()
	entry := &models.JournalEntry{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.storage.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("store imported entry: %w", err)
	}
	if _, err := g.indexer.IndexEntry(ctx, entry.ID, entry.Title, entry.Content, now.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("index imported entry: %w", err)
	}
	return entry, nil
}

// Watcher watches directories and ingests matching files on create or write,
// debounced so editors that write in bursts import once.
type Watcher struct {
	ingester   *Ingester
	roots      []string
	extensions []string
	debounce   time.Duration
	logger     *zap.Logger // optional

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over roots for files with the given extensions
// (e.g. ".txt", ".md"; empty matches all).
func NewWatcher(ingester *Ingester, roots, extensions []string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		ingester:   ingester,
		roots:      roots,
		extensions: extensions,
		debounce:   defaultDebounce,
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are skipped with a warning rather than failing startup.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	for _, root := range w.roots {
		if err := fw.Add(root); err != nil {
			if w.logger != nil {
				w.logger.Warn("import watcher skipping root", zap.String("root", root), zap.Error(err))
			}
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and cancels pending debounced ingests.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.timers {
			timer.Stop()
			delete(w.timers, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("import watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.matchExtension(ev.Name) {
		return
	}
	if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
		return
	}
	w.debounceIngest(ctx, ev.Name)
}

func (w *Watcher) debounceIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		entry, err := w.ingester.IngestFile(ctx, path)
		if err != nil {
			if w.logger != nil {
				w.logger.Warn("import failed", zap.String("path", path), zap.Error(err))
			}
			return
		}
		if w.logger != nil {
			w.logger.Info("file imported as entry",
				zap.String("path", path),
				zap.String("entry_id", entry.ID))
		}
	})
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.extensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}
