package workers

import (
	"context"
	"sync"
	"time"

	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/leasepolicy"
	"github.com/mmux-project/elasticmem/internal/log_service"
)

// LeaseExpiryWorker periodically drains the lease policy's expired set and
// invokes the tree's handle_lease_expiry hook on each path.
// When a path's lease expires, pinned files survive, mapped files are
// flushed, everything else is removed; those rules live in the tree, not
// here.
type LeaseExpiryWorker struct {
	tree   *dirtree.Tree
	policy leasepolicy.LeasePolicy
	ls     log_service.LogService
	period time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewLeaseExpiryWorker(tree *dirtree.Tree, policy leasepolicy.LeasePolicy, ls log_service.LogService, period time.Duration) *LeaseExpiryWorker {
	return &LeaseExpiryWorker{
		tree:   tree,
		policy: policy,
		ls:     ls,
		period: period,
		stopCh: make(chan struct{}),
	}
}

func (w *LeaseExpiryWorker) Start() {
	w.ls.Info(log_service.LogEvent{Message: "Starting lease expiry worker", Metadata: map[string]any{"period": w.period.String()}})
	w.wg.Add(1)
	go w.loop()
}

func (w *LeaseExpiryWorker) Stop() {
	w.ls.Info(log_service.LogEvent{Message: "Stopping lease expiry worker"})
	close(w.stopCh)
	w.wg.Wait()
}

func (w *LeaseExpiryWorker) loop() {
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

// SweepOnce handles every lease the policy reports as elapsed since the
// last sweep.
func (w *LeaseExpiryWorker) SweepOnce(ctx context.Context) {
	for _, path := range w.policy.Expired() {
		if err := w.tree.HandleLeaseExpiry(ctx, path); err != nil {
			if code, ok := dirtree.CodeOf(err); ok && code == dirtree.CodeNotFound {
				continue
			}
			w.ls.Warn(log_service.LogEvent{Message: "Lease expiry handling failed", Metadata: map[string]any{"path": path, "error": err.Error()}})
		}
	}
}
