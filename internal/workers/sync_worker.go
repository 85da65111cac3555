package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/log_service"
)

// SyncWorker periodically walks the namespace and syncs every file whose
// data status carries the mapped flag to its backing path. One bad
// file is logged and skipped; the sweep always finishes.
type SyncWorker struct {
	tree   *dirtree.Tree
	ls     log_service.LogService
	period time.Duration

	epoch atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSyncWorker(tree *dirtree.Tree, ls log_service.LogService, period time.Duration) *SyncWorker {
	return &SyncWorker{
		tree:   tree,
		ls:     ls,
		period: period,
		stopCh: make(chan struct{}),
	}
}

func (w *SyncWorker) Start() {
	w.ls.Info(log_service.LogEvent{Message: "Starting sync worker", Metadata: map[string]any{"period": w.period.String()}})
	w.wg.Add(1)
	go w.loop()
}

func (w *SyncWorker) Stop() {
	w.ls.Info(log_service.LogEvent{Message: "Stopping sync worker"})
	close(w.stopCh)
	w.wg.Wait()
}

// Epoch counts completed sweeps, for observability.
func (w *SyncWorker) Epoch() uint64 { return w.epoch.Load() }

func (w *SyncWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.SweepOnce(context.Background())
		}
	}
}

// SweepOnce runs one sync pass over every mapped file.
func (w *SyncWorker) SweepOnce(ctx context.Context) {
	for _, path := range filePaths(w.tree, "/") {
		ds, err := w.tree.DStatus(path)
		if err != nil {
			continue
		}
		if !ds.IsMapped() {
			continue
		}
		if err := w.tree.Sync(ctx, path, ds.BackingPath); err != nil {
			w.ls.Warn(log_service.LogEvent{Message: "Sync sweep failed for file", Metadata: map[string]any{"path": path, "error": err.Error()}})
		}
	}
	w.epoch.Add(1)
}
