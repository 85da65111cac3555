package dirtree_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mmux-project/elasticmem/internal/dirtree"
)

func TestRemoveVsRemoveAll(t *testing.T) {
	tree, alloc, rec := newTestTree(4)
	mustCreateFile(t, tree, "/sandbox/abcdef/example/a/b", 1, 1)

	ctx := context.Background()
	if err := tree.Remove(ctx, "/sandbox/abcdef/example/a/b"); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if alloc.NumFree() != 4 {
		t.Fatalf("after removing the only file, allocator should be fully free: got %d", alloc.NumFree())
	}
	if cmds := rec.Commands(); len(cmds) == 0 || cmds[len(cmds)-1] != "clear:0" {
		t.Fatalf("expected a clear:0 command, got %v", cmds)
	}

	err := tree.Remove(ctx, "/sandbox/abcdef")
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeDirectoryNotEmpty {
		t.Fatalf("remove on non-empty directory: got %v, want directory_not_empty", err)
	}

	if err := tree.RemoveAll(ctx, "/sandbox/abcdef"); err != nil {
		t.Fatalf("remove_all: %v", err)
	}
	if tree.Exists("/sandbox/abcdef") {
		t.Fatalf("remove_all should delete the subtree")
	}
	if alloc.NumFree() != 4 {
		t.Fatalf("allocator should return to its pre-file value: got %d", alloc.NumFree())
	}
}

func TestDumpOrderingAndBlockIDs(t *testing.T) {
	tree, alloc, rec := newTestTree(4)
	ctx := context.Background()

	mustCreateFile(t, tree, "/sandbox/abcdef/example/a/b", 1, 1)
	mustCreateFile(t, tree, "/sandbox/abcdef/example/c", 1, 1)

	if _, err := tree.Dump(ctx, "/sandbox/abcdef/example/c", "/tmp"); err != nil {
		t.Fatalf("dump c: %v", err)
	}
	if _, err := tree.Dump(ctx, "/sandbox/abcdef/example/a", "/tmp"); err != nil {
		t.Fatalf("dump a: %v", err)
	}

	cmds := rec.Commands()
	wantC := "flush:1:/tmp:/sandbox/abcdef/example/c"
	wantA := "flush:0:/tmp:/sandbox/abcdef/example/a/b"
	if !containsInOrder(cmds, wantC, wantA) {
		t.Fatalf("expected %q then %q in order, got %v", wantC, wantA, cmds)
	}

	for _, p := range []string{"/sandbox/abcdef/example/a/b", "/sandbox/abcdef/example/c"} {
		ds, err := tree.DStatus(p)
		if err != nil {
			t.Fatal(err)
		}
		if ds.DataBlocks[0].Mode != dirtree.ModeOnDisk {
			t.Fatalf("%s: expected on_disk mode, got %v", p, ds.DataBlocks[0].Mode)
		}
	}

	if err := tree.RemoveAll(ctx, "/sandbox/abcdef"); err != nil {
		t.Fatal(err)
	}
	if alloc.NumFree() != 4 {
		t.Fatalf("allocator should return to 4 free, got %d", alloc.NumFree())
	}
}

func containsInOrder(haystack []string, first, second string) bool {
	firstIdx := -1
	for i, s := range haystack {
		if s == first {
			firstIdx = i
			break
		}
	}
	if firstIdx == -1 {
		return false
	}
	for _, s := range haystack[firstIdx+1:] {
		if s == second {
			return true
		}
	}
	return false
}

func TestAddBlockCapacityAndRemoveDataBlock(t *testing.T) {
	tree, alloc, _ := newTestTree(4)
	ctx := context.Background()

	mustCreateFile(t, tree, "/f", 1, 1)

	for i := 0; i < 3; i++ {
		if err := tree.AddBlock(ctx, "/f"); err != nil {
			t.Fatalf("add_block %d: %v", i, err)
		}
	}

	err := tree.AddBlock(ctx, "/f")
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeAtCapacity {
		t.Fatalf("fourth add_block: got %v, want at_capacity", err)
	}

	if alloc.NumAllocated() != 4 || alloc.NumFree() != 0 {
		t.Fatalf("expected 4 allocated / 0 free, got %d/%d", alloc.NumAllocated(), alloc.NumFree())
	}

	if _, err := tree.RemoveDataBlock(ctx, "/f", 0); err != nil {
		t.Fatalf("remove_data_block: %v", err)
	}
	if alloc.NumAllocated() != 3 || alloc.NumFree() != 1 {
		t.Fatalf("expected 3 allocated / 1 free, got %d/%d", alloc.NumAllocated(), alloc.NumFree())
	}

	if err := tree.RemoveAllDataBlocks(ctx, "/f"); err != nil {
		t.Fatalf("remove_all_data_blocks: %v", err)
	}
	if alloc.NumFree() != 4 {
		t.Fatalf("expected allocator back to 4 free, got %d", alloc.NumFree())
	}
}

// Splitting the single chain and then merging its lower half back into the
// upper half restores the original single-chain range.
func TestSplitThenMergeRestoresPartition(t *testing.T) {
	tree, _, _ := newTestTree(4)
	ctx := context.Background()

	mustCreateFile(t, tree, "/f", 1, 1)
	before, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	begin, end := before.DataBlocks[0].SlotBegin, before.DataBlocks[0].SlotEnd

	if err := tree.SplitSlotRange(ctx, "/f", begin, end); err != nil {
		t.Fatalf("split: %v", err)
	}
	split, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if len(split.DataBlocks) != 2 {
		t.Fatalf("expected 2 chains after split, got %d", len(split.DataBlocks))
	}

	if err := tree.MergeSlotRange(ctx, "/f", split.DataBlocks[0].SlotBegin, split.DataBlocks[0].SlotEnd); err != nil {
		t.Fatalf("merge: %v", err)
	}
	after, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.DataBlocks) != 1 {
		t.Fatalf("expected 1 chain after merge, got %d", len(after.DataBlocks))
	}
	if after.DataBlocks[0].SlotBegin != begin || after.DataBlocks[0].SlotEnd != end {
		t.Fatalf("merge should restore the original range: got [%d,%d] want [%d,%d]",
			after.DataBlocks[0].SlotBegin, after.DataBlocks[0].SlotEnd, begin, end)
	}
}

// Dump sets every chain to on_disk; load restores in_memory.
func TestDumpLoadIdempotentMode(t *testing.T) {
	tree, _, _ := newTestTree(4)
	ctx := context.Background()

	mustCreateFile(t, tree, "/f", 1, 1)
	if _, err := tree.Dump(ctx, "/f", "/tmp"); err != nil {
		t.Fatal(err)
	}
	ds, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if ds.DataBlocks[0].Mode != dirtree.ModeOnDisk {
		t.Fatalf("expected on_disk after dump, got %v", ds.DataBlocks[0].Mode)
	}

	if err := tree.Load(ctx, "/f", 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	ds, err = tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if ds.DataBlocks[0].Mode != dirtree.ModeInMemory {
		t.Fatalf("expected in_memory after load, got %v", ds.DataBlocks[0].Mode)
	}
}

func TestResolveFailuresReplacesDeadMember(t *testing.T) {
	tree, alloc, rec := newTestTree(6)
	ctx := context.Background()

	before := mustCreateFile(t, tree, "/f", 1, 3)
	chain := before.DataBlocks[0]

	bad := chain
	bad.BlockNames = append([]string(nil), chain.BlockNames...)
	bad.BlockNames[1] = ""

	repaired, err := tree.ResolveFailures(ctx, "/f", bad)
	if err != nil {
		t.Fatalf("resolve_failures: %v", err)
	}
	if repaired.BlockNames[0] != chain.BlockNames[0] || repaired.BlockNames[2] != chain.BlockNames[2] {
		t.Fatalf("survivors must keep their positions: got %v", repaired.BlockNames)
	}
	if repaired.BlockNames[1] != "3" {
		t.Fatalf("dead member should be replaced by the next free block: got %v", repaired.BlockNames)
	}

	// Only the replacement gets a fresh setup, forwarding to the surviving
	// tail, and the head is told to resend pending writes.
	var replacementSetup bool
	for _, cmd := range rec.Commands() {
		if strings.HasPrefix(cmd, "setup:3:") && strings.HasSuffix(cmd, ":"+chain.BlockNames[2]) {
			replacementSetup = true
		}
	}
	if !replacementSetup {
		t.Fatalf("replacement block was never set up toward the surviving tail: %v", rec.Commands())
	}
	var resent bool
	for _, cmd := range rec.Commands() {
		if cmd == "resend:"+chain.BlockNames[0] {
			resent = true
		}
	}
	if !resent {
		t.Fatalf("head should be asked to resend pending writes: %v", rec.Commands())
	}

	after, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if after.FindReplicaChain(repaired) != 0 {
		t.Fatalf("repaired chain should replace the damaged one in dstatus: %v", after.DataBlocks)
	}
	if alloc.NumAllocated() != 4 {
		t.Fatalf("expected 4 allocated (3 original + 1 replacement), got %d", alloc.NumAllocated())
	}

	wrongRange := bad
	wrongRange.SlotBegin = bad.SlotBegin + 1
	_, err = tree.ResolveFailures(ctx, "/f", wrongRange)
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeNotFound {
		t.Fatalf("mismatched range: got %v, want not_found", err)
	}
}

func TestAddReplicaToChainRewiresPriorTail(t *testing.T) {
	tree, alloc, rec := newTestTree(4)
	ctx := context.Background()

	before := mustCreateFile(t, tree, "/f", 1, 2)

	extended, err := tree.AddReplicaToChain(ctx, "/f", before.DataBlocks[0])
	if err != nil {
		t.Fatalf("add_replica_to_chain: %v", err)
	}
	if extended.ChainLength() != 3 || extended.Tail() != "2" {
		t.Fatalf("expected chain extended to [0 1 2], got %v", extended.BlockNames)
	}

	// The new tail is set up first (forwarding to nothing), then the prior
	// tail is re-set-up as a mid forwarding to it.
	newTailAt, rewireAt := -1, -1
	for i, cmd := range rec.Commands() {
		if strings.HasPrefix(cmd, "setup:2:") && strings.HasSuffix(cmd, ":nil") {
			newTailAt = i
		}
		if strings.HasPrefix(cmd, "setup:1:") && strings.HasSuffix(cmd, ":2") {
			rewireAt = i
		}
	}
	if newTailAt == -1 {
		t.Fatalf("new tail was never set up: %v", rec.Commands())
	}
	if rewireAt == -1 || rewireAt < newTailAt {
		t.Fatalf("prior tail must be rewired toward the new tail after it exists: %v", rec.Commands())
	}

	after, err := tree.DStatus("/f")
	if err != nil {
		t.Fatal(err)
	}
	if after.FindReplicaChain(extended) != 0 {
		t.Fatalf("extended chain should replace the original in dstatus: %v", after.DataBlocks)
	}
	if alloc.NumAllocated() != 3 {
		t.Fatalf("expected 3 allocated after extension, got %d", alloc.NumAllocated())
	}
}
