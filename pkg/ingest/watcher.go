package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay is how long the watcher waits after the last write event for a
// file before reading it, so a file still being copied in is not ingested
// half-written.
const settleDelay = 500 * time.Millisecond

// watchedExtensions are the file types the watcher picks up from the drop
// directory. Everything else is ignored.
var watchedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Watcher ingests files dropped into a directory. Every picked-up file lands
// in a single designated conversation.
type Watcher struct {
	pipeline       *Pipeline
	conversationID string
	dir            string
	logger         *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]bool
}

// NewWatcher creates a drop-directory watcher targeting one conversation.
func NewWatcher(pipeline *Pipeline, conversationID, dir string, logger *zap.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", dir)
	}

	return &Watcher{
		pipeline:       pipeline,
		conversationID: conversationID,
		dir:            dir,
		logger:         logger,
		pending:        make(map[string]*time.Timer),
		seen:           make(map[string]bool),
	}, nil
}

// Run watches the directory until the context is canceled. Files already
// present at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	if err := w.ingestExisting(ctx); err != nil {
		return err
	}

	w.logger.Info("watching drop directory",
		zap.String("dir", w.dir),
		zap.String("conversation_id", w.conversationID),
	)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", w.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.dir, entry.Name()))
	}

	return nil
}

// schedule arms (or re-arms) the settle timer for a path. The file is read
// only after writes to it have gone quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !watchedExtensions[strings.ToLower(filepath.Ext(path))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingestFile(ctx, path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	if !watchedExtensions[strings.ToLower(filepath.Ext(path))] {
		return
	}

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading dropped file", zap.String("path", path), zap.Error(err))
		w.forget(path)
		return
	}

	name := filepath.Base(path)
	if _, err := w.pipeline.IngestBytes(ctx, w.conversationID, name, data); err != nil {
		w.logger.Warn("ingesting dropped file", zap.String("path", path), zap.Error(err))
		w.forget(path)
		return
	}

	w.logger.Info("dropped file ingested", zap.String("path", path))
}

// forget allows a failed path to be retried on its next write event.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}
