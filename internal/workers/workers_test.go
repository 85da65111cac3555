package workers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmux-project/elasticmem/internal/blockstore"
	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/log_service"
	"github.com/mmux-project/elasticmem/internal/storageclient"
	"github.com/mmux-project/elasticmem/internal/workers"
)

type noopLogService struct{}

func (noopLogService) Debug(log_service.LogEvent) {}
func (noopLogService) Info(log_service.LogEvent)  {}
func (noopLogService) Warn(log_service.LogEvent)  {}
func (noopLogService) Error(log_service.LogEvent) {}

// queueLeasePolicy hands back a scripted expiry set, once.
type queueLeasePolicy struct {
	expired []string
}

func (p *queueLeasePolicy) Acquire(context.Context, string) error { return nil }
func (p *queueLeasePolicy) Renew(context.Context, string) error   { return nil }
func (p *queueLeasePolicy) Release(context.Context, string) error { return nil }

func (p *queueLeasePolicy) Expired() []string {
	out := p.expired
	p.expired = nil
	return out
}

func newTestTree(capacity int) (*dirtree.Tree, *blockstore.InMemoryBlockAllocator, *storageclient.Recorder) {
	alloc := blockstore.NewInMemoryBlockAllocator(capacity)
	rec := storageclient.NewRecorder(1024)
	tree := dirtree.NewTree(alloc, rec, noopLogService{})
	return tree, alloc, rec
}

func mustCreateFile(t *testing.T, tree *dirtree.Tree, path string, flags dirtree.Flags) dirtree.DataStatus {
	t.Helper()
	ds, err := tree.Create(context.Background(), path, dirtree.CreateFileOptions{
		BackingPath: "/tmp",
		NumBlocks:   1,
		ChainLength: 1,
		Flags:       flags,
		Permissions: dirtree.All,
	})
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return ds
}

func TestSyncWorkerSweepsOnlyMappedFiles(t *testing.T) {
	tree, _, rec := newTestTree(4)
	mustCreateFile(t, tree, "/data/mapped", dirtree.FlagMapped)
	mustCreateFile(t, tree, "/data/plain", 0)

	w := workers.NewSyncWorker(tree, noopLogService{}, time.Minute)
	w.SweepOnce(context.Background())

	var syncs []string
	for _, cmd := range rec.Commands() {
		if strings.HasPrefix(cmd, "sync:") {
			syncs = append(syncs, cmd)
		}
	}
	if len(syncs) != 1 {
		t.Fatalf("expected exactly one sync command, got %v", syncs)
	}
	if !strings.HasSuffix(syncs[0], ":/tmp:/data/mapped") {
		t.Fatalf("sync should target the mapped file's backing path: got %q", syncs[0])
	}
	if w.Epoch() != 1 {
		t.Fatalf("expected epoch 1 after one sweep, got %d", w.Epoch())
	}
}

func TestSyncWorkerStartStop(t *testing.T) {
	tree, _, _ := newTestTree(4)
	mustCreateFile(t, tree, "/f", dirtree.FlagMapped)

	w := workers.NewSyncWorker(tree, noopLogService{}, 5*time.Millisecond)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for w.Epoch() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sync worker never completed a sweep")
		}
		time.Sleep(time.Millisecond)
	}
	w.Stop()
}

func TestLeaseExpiryWorkerAppliesPolicy(t *testing.T) {
	tree, alloc, _ := newTestTree(4)
	mustCreateFile(t, tree, "/plain", 0)
	mustCreateFile(t, tree, "/pinned", dirtree.FlagPinned)
	mustCreateFile(t, tree, "/mapped", dirtree.FlagMapped)

	policy := &queueLeasePolicy{expired: []string{"/plain", "/pinned", "/mapped", "/vanished"}}
	w := workers.NewLeaseExpiryWorker(tree, policy, noopLogService{}, time.Minute)
	w.SweepOnce(context.Background())

	if tree.Exists("/plain") {
		t.Fatalf("unpinned, unmapped file should be removed on lease expiry")
	}
	if !tree.Exists("/pinned") {
		t.Fatalf("pinned file must survive lease expiry")
	}
	if !tree.Exists("/mapped") {
		t.Fatalf("mapped file keeps its namespace entry on lease expiry")
	}

	ds, err := tree.DStatus("/mapped")
	if err != nil {
		t.Fatal(err)
	}
	if ds.DataBlocks[0].Mode != dirtree.ModeOnDisk {
		t.Fatalf("mapped file should be flushed to on_disk, got %v", ds.DataBlocks[0].Mode)
	}

	if alloc.NumFree() != 2 {
		t.Fatalf("only the removed file's block returns to the pool: free=%d", alloc.NumFree())
	}
}

func TestFileSizeTrackerRefresh(t *testing.T) {
	tree, _, rec := newTestTree(4)
	dsA := mustCreateFile(t, tree, "/a", 0)
	dsB := mustCreateFile(t, tree, "/dir/b", 0)

	rec.SetSize(dsA.DataBlocks[0].Tail(), 100)
	rec.SetSize(dsB.DataBlocks[0].Tail(), 250)

	tracker := workers.NewFileSizeTracker(tree, noopLogService{}, time.Minute)
	tracker.Refresh(context.Background())

	if sz, ok := tracker.SizeOf("/a"); !ok || sz != 100 {
		t.Fatalf("size of /a: got %d,%v want 100", sz, ok)
	}
	if sz, ok := tracker.SizeOf("/dir/b"); !ok || sz != 250 {
		t.Fatalf("size of /dir/b: got %d,%v want 250", sz, ok)
	}
	if total := tracker.TotalBytes(); total != 350 {
		t.Fatalf("total bytes: got %d want 350", total)
	}

	if err := tree.RemoveAll(context.Background(), "/dir"); err != nil {
		t.Fatal(err)
	}
	tracker.Refresh(context.Background())
	if _, ok := tracker.SizeOf("/dir/b"); ok {
		t.Fatalf("removed file should drop out of the size cache")
	}
	if len(tracker.Sizes()) != 1 {
		t.Fatalf("expected a single tracked file, got %v", tracker.Sizes())
	}
}
