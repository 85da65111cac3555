package workers

import (
	"context"
	"sync"
	"time"

	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/log_service"
)

// FileSizeTracker periodically reads the aggregated storage size of every
// file in the namespace and caches it, so size queries never have to fan
// out to the storage fleet on the hot path.
type FileSizeTracker struct {
	tree   *dirtree.Tree
	ls     log_service.LogService
	period time.Duration

	mu    sync.RWMutex
	sizes map[string]int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewFileSizeTracker(tree *dirtree.Tree, ls log_service.LogService, period time.Duration) *FileSizeTracker {
	return &FileSizeTracker{
		tree:   tree,
		ls:     ls,
		period: period,
		sizes:  make(map[string]int64),
		stopCh: make(chan struct{}),
	}
}

func (w *FileSizeTracker) Start() {
	w.ls.Info(log_service.LogEvent{Message: "Starting file size tracker", Metadata: map[string]any{"period": w.period.String()}})
	w.wg.Add(1)
	go w.loop()
}

func (w *FileSizeTracker) Stop() {
	w.ls.Info(log_service.LogEvent{Message: "Stopping file size tracker"})
	close(w.stopCh)
	w.wg.Wait()
}

func (w *FileSizeTracker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Refresh(context.Background())
		}
	}
}

// Refresh re-reads every file's size from storage. Files that fail to
// report are dropped from the cache until the next successful read.
func (w *FileSizeTracker) Refresh(ctx context.Context) {
	fresh := make(map[string]int64)
	for _, path := range filePaths(w.tree, "/") {
		sz, err := w.tree.FileSize(ctx, path)
		if err != nil {
			w.ls.Warn(log_service.LogEvent{Message: "Size tracking failed for file", Metadata: map[string]any{"path": path, "error": err.Error()}})
			continue
		}
		fresh[path] = sz
	}

	w.mu.Lock()
	w.sizes = fresh
	w.mu.Unlock()
}

// SizeOf returns the last observed size of path, if any.
func (w *FileSizeTracker) SizeOf(path string) (int64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sz, ok := w.sizes[path]
	return sz, ok
}

// Sizes returns a snapshot of every tracked file's last observed size.
func (w *FileSizeTracker) Sizes() map[string]int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]int64, len(w.sizes))
	for k, v := range w.sizes {
		out[k] = v
	}
	return out
}

// TotalBytes sums the last observed sizes across all tracked files.
func (w *FileSizeTracker) TotalBytes() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var total int64
	for _, v := range w.sizes {
		total += v
	}
	return total
}
