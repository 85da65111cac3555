package dirtree

import (
	"context"
	"errors"
	"time"

	"github.com/mmux-project/elasticmem/internal/log_service"
	"github.com/mmux-project/elasticmem/internal/storageclient"
)

func (t *Tree) warn(message string, metadata map[string]any) {
	t.ls.Warn(log_service.LogEvent{Timestamp: time.Now(), Message: message, Metadata: metadata})
}

// This file is the capacity and persistence orchestrator: add-block
// auto-scale, explicit split/merge, chain repair, replica addition, and the
// sync/dump/load/lease-expiry persistence protocols.
//
// Split/merge finalization could be modeled as a callback triggered once
// the storage layer signals the data movement is complete. This
// implementation's StorageClient calls are synchronous, so there is no
// separate completion signal to wait for: finalize runs immediately after
// the setup/export calls succeed, which is observationally equivalent from
// the directory core's point of view.

func storageRoleOf(r ChainRole) storageclient.Role {
	switch r {
	case RoleHead:
		return storageclient.RoleHead
	case RoleMid:
		return storageclient.RoleMid
	case RoleTail:
		return storageclient.RoleTail
	default:
		return storageclient.RoleSingleton
	}
}

// wrapStorageErr classifies an error from the storage client:
// transport failures become io_error, everything else storage_error.
func (t *Tree) wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storageclient.ErrTransportError) {
		return newError(CodeIOError, "storage transport failure", err)
	}
	return newError(CodeStorageError, "storage management call failed", err)
}

// partitionSlots divides [0, SlotMax] into n contiguous, non-overlapping
// ranges as evenly as possible; the last range always ends at SlotMax
//.
func partitionSlots(n int) [][2]int64 {
	total := SlotMax + 1
	base := total / int64(n)
	rem := total % int64(n)

	ranges := make([][2]int64, n)
	var cur int64
	for i := 0; i < n; i++ {
		size := base
		if int64(i) < rem {
			size++
		}
		ranges[i] = [2]int64{cur, cur + size - 1}
		cur += size
	}
	ranges[n-1][1] = SlotMax
	return ranges
}

// setupNewFile allocates num_blocks*chain_length blocks, partitions the
// slot space across num_blocks chains, and issues setup_block for every
// block chain-by-chain, head to tail, rolling back on any failure.
func (t *Tree) setupNewFile(ctx context.Context, path string, opts CreateFileOptions) (DataStatus, error) {
	ranges := partitionSlots(opts.NumBlocks)
	ds := DataStatus{
		BackingPath: opts.BackingPath,
		ChainLength: opts.ChainLength,
		Flags:       opts.Flags,
		Tags:        cloneTags(opts.Tags),
	}

	autoScale := !ds.IsStaticProvisioned()

	for _, r := range ranges {
		blocks, err := t.allocator.Allocate(opts.ChainLength, nil)
		if err != nil {
			t.bestEffortTeardown(ctx, ds)
			return DataStatus{}, t.wrapAllocErr(err)
		}
		chain := ReplicaChain{BlockNames: blocks, SlotBegin: r[0], SlotEnd: r[1], Status: ChainStable, Mode: ModeInMemory}

		for i, block := range blocks {
			role := storageRoleOf(chain.RoleOf(i))
			next := chain.NextBlock(i)
			if err := t.storage.SetupBlock(ctx, block, path, r[0], r[1], blocks, autoScale, role, next); err != nil {
				for _, done := range blocks[:i] {
					if rerr := t.storage.Reset(ctx, done); rerr != nil {
						t.warn("best-effort reset failed during rollback", map[string]any{"block": done, "error": rerr.Error()})
					}
				}
				t.allocator.Free(blocks)
				t.bestEffortTeardown(ctx, ds)
				return DataStatus{}, t.wrapStorageErr(err)
			}
		}
		ds.DataBlocks = append(ds.DataBlocks, chain)
	}
	return ds, nil
}

func (t *Tree) wrapAllocErr(err error) error {
	return newError(CodeAtCapacity, "block allocator exhausted", err)
}

// bestEffortTeardown resets and frees every block already set up for ds,
// logging but not failing on a reset error; rollback is best-effort.
func (t *Tree) bestEffortTeardown(ctx context.Context, ds DataStatus) {
	var all []string
	for _, chain := range ds.DataBlocks {
		for _, block := range chain.BlockNames {
			if err := t.storage.Reset(ctx, block); err != nil {
				t.warn("best-effort reset failed during rollback", map[string]any{"block": block, "error": err.Error()})
			}
			all = append(all, block)
		}
	}
	if len(all) > 0 {
		if err := t.allocator.Free(all); err != nil {
			t.warn("best-effort free failed during rollback", map[string]any{"error": err.Error()})
		}
	}
}

// teardownFile resets every block of an existing file's data blocks and
// returns them to the allocator. Chains on the in-flight adding list are
// not visited.
func (t *Tree) teardownFile(ctx context.Context, n *Node) {
	ds := n.DStatus()
	var all []string
	for _, chain := range ds.DataBlocks {
		for _, block := range chain.BlockNames {
			if err := t.storage.Reset(ctx, block); err != nil {
				t.warn("reset failed during teardown", map[string]any{"block": block, "error": err.Error()})
			}
			all = append(all, block)
		}
	}
	if len(all) > 0 {
		if err := t.allocator.Free(all); err != nil {
			t.warn("free failed during teardown", map[string]any{"error": err.Error()})
		}
	}
}

// --- Add block / split / merge ---

// selectDonor picks the chain to split for auto-scale: among stable chains
// with more than one slot, the one with the largest tail storage_size,
// ties broken by lowest index.
func (t *Tree) selectDonor(ctx context.Context, ds DataStatus) (int, error) {
	best := -1
	var bestSize int64 = -1
	for i, chain := range ds.DataBlocks {
		if chain.Status != ChainStable || chain.NumSlots() <= 1 {
			continue
		}
		size, err := t.storage.StorageSize(ctx, chain.Tail())
		if err != nil {
			return -1, t.wrapStorageErr(err)
		}
		if size > bestSize {
			bestSize = size
			best = i
		}
	}
	if best == -1 {
		return -1, newError(CodeAtCapacity, "no chain eligible to split", nil)
	}
	return best, nil
}

// AddBlock runs the auto-scale add-block protocol: picks a donor, splits
// its range, and finalizes immediately.
func (t *Tree) AddBlock(ctx context.Context, path string) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.dstatus.DataBlocks) >= int(SlotMax) {
		return newError(CodeAtCapacity, path, nil)
	}
	ds := n.dstatusLocked()
	donorIdx, err := t.selectDonor(ctx, ds)
	if err != nil {
		return err
	}
	return t.doSplitLocked(ctx, n, donorIdx)
}

// SplitSlotRange runs the explicit split protocol against the chain whose
// range exactly matches [begin, end].
func (t *Tree) SplitSlotRange(ctx context.Context, path string, begin, end int64) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	idx := -1
	for i, chain := range n.dstatus.DataBlocks {
		if chain.SlotBegin == begin && chain.SlotEnd == end {
			idx = i
			break
		}
	}
	if idx == -1 {
		return newError(CodeNotFound, path, nil)
	}
	if n.dstatus.DataBlocks[idx].Status != ChainStable {
		return newError(CodeBusy, path, nil)
	}
	return t.doSplitLocked(ctx, n, idx)
}

// doSplitLocked runs the split protocol after donor selection, through
// export, import, and finalization. Caller must hold n.mu.
func (t *Tree) doSplitLocked(ctx context.Context, n *Node, donorIdx int) error {
	donor := n.dstatus.DataBlocks[donorIdx]
	mid := (donor.SlotBegin + donor.SlotEnd) / 2
	if mid >= donor.SlotEnd {
		return newError(CodeAtCapacity, "donor range too small to split", nil)
	}

	n.setDataBlockStatusLocked(donorIdx, ChainExporting)

	recipientBlocks, err := t.allocator.Allocate(n.dstatus.ChainLength, nil)
	if err != nil {
		n.setDataBlockStatusLocked(donorIdx, ChainStable)
		return t.wrapAllocErr(err)
	}
	recipient := ReplicaChain{BlockNames: recipientBlocks, SlotBegin: mid + 1, SlotEnd: donor.SlotEnd, Status: ChainImporting, Mode: ModeInMemory}

	for i, block := range recipientBlocks {
		role := storageRoleOf(recipient.RoleOf(i))
		next := recipient.NextBlock(i)
		if err := t.storage.SetupAndSetImporting(ctx, block, n.dstatus.BackingPath, recipient.SlotBegin, recipient.SlotEnd, recipientBlocks, role, next); err != nil {
			t.allocator.Free(recipientBlocks)
			n.setDataBlockStatusLocked(donorIdx, ChainStable)
			return t.wrapStorageErr(err)
		}
	}
	for _, block := range donor.BlockNames {
		if err := t.storage.SetExporting(ctx, block, recipientBlocks, recipient.SlotBegin, recipient.SlotEnd); err != nil {
			return t.wrapStorageErr(err)
		}
	}
	n.addAddingLocked(recipient)

	return t.finalizeSplitLocked(ctx, n, donorIdx, recipient)
}

// finalizeSplitLocked installs the recipient chain and restores both
// chains to stable. Caller must hold n.mu.
func (t *Tree) finalizeSplitLocked(ctx context.Context, n *Node, donorIdx int, recipient ReplicaChain) error {
	donor := n.dstatus.DataBlocks[donorIdx]
	mid := (donor.SlotBegin + donor.SlotEnd) / 2

	n.updateDataBlockSlotsLocked(donorIdx, donor.SlotBegin, mid)
	n.setDataBlockStatusLocked(donorIdx, ChainStable)

	recipient.Status = ChainStable
	n.addDataBlockLocked(recipient, donorIdx+1)

	donorNow := n.dstatus.DataBlocks[donorIdx]
	if err := t.setRegularAll(ctx, donorNow); err != nil {
		return err
	}
	if err := t.setRegularAll(ctx, recipient); err != nil {
		return err
	}

	return n.removeAddingLocked(recipient)
}

func (t *Tree) setRegularAll(ctx context.Context, chain ReplicaChain) error {
	for _, block := range chain.BlockNames {
		if err := t.storage.SetRegular(ctx, block, chain.SlotBegin, chain.SlotEnd); err != nil {
			return t.wrapStorageErr(err)
		}
	}
	return nil
}

// MergeSlotRange runs the merge protocol: the donor chain with exactly
// [begin, end] is folded into its right-neighbor partner.
func (t *Tree) MergeSlotRange(ctx context.Context, path string, begin, end int64) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	donorIdx := -1
	for i, chain := range n.dstatus.DataBlocks {
		if chain.SlotBegin == begin && chain.SlotEnd == end {
			donorIdx = i
			break
		}
	}
	if donorIdx == -1 {
		return newError(CodeNotFound, path, nil)
	}
	if donorIdx+1 >= len(n.dstatus.DataBlocks) || end == SlotMax {
		return newError(CodeNoPartner, path, nil)
	}
	partnerIdx := donorIdx + 1
	donor := n.dstatus.DataBlocks[donorIdx]
	partner := n.dstatus.DataBlocks[partnerIdx]
	if partner.Status == ChainExporting {
		return newError(CodeNoPartner, path, nil)
	}

	n.setDataBlockStatusLocked(donorIdx, ChainExporting)
	n.setDataBlockStatusLocked(partnerIdx, ChainImporting)

	for _, block := range partner.BlockNames {
		if err := t.storage.SetImporting(ctx, block, begin, end); err != nil {
			n.setDataBlockStatusLocked(donorIdx, ChainStable)
			n.setDataBlockStatusLocked(partnerIdx, ChainStable)
			return t.wrapStorageErr(err)
		}
	}
	for _, block := range donor.BlockNames {
		if err := t.storage.SetExporting(ctx, block, partner.BlockNames, begin, end); err != nil {
			return t.wrapStorageErr(err)
		}
	}

	return t.finalizeMergeLocked(ctx, n, donorIdx)
}

// finalizeMergeLocked widens the partner over the donor's range and
// drops the donor chain. Caller must hold n.mu.
func (t *Tree) finalizeMergeLocked(ctx context.Context, n *Node, donorIdx int) error {
	partnerIdx := donorIdx + 1
	donor := n.dstatus.DataBlocks[donorIdx]
	partner := n.dstatus.DataBlocks[partnerIdx]

	n.updateDataBlockSlotsLocked(partnerIdx, donor.SlotBegin, partner.SlotEnd)
	n.setDataBlockStatusLocked(partnerIdx, ChainStable)

	n.removeDataBlockLocked(donorIdx)

	for _, block := range donor.BlockNames {
		if err := t.storage.Reset(ctx, block); err != nil {
			t.warn("reset failed during merge finalize", map[string]any{"block": block, "error": err.Error()})
		}
	}

	widened := n.dstatus.DataBlocks[donorIdx] // partner now occupies donorIdx after the removal shift
	if err := t.setRegularAll(ctx, widened); err != nil {
		return err
	}

	if err := t.allocator.Free(donor.BlockNames); err != nil {
		t.warn("free failed during merge finalize", map[string]any{"error": err.Error()})
	}
	return nil
}

// --- Chain repair & replica addition ---

// ResolveFailures rebuilds badChain, replacing any member named "" (a dead
// block sentinel) with a freshly allocated one, preserving survivors in
// order and re-deriving head/tail roles, then updates the file's dstatus in
// place. The stored chain is found by range and surviving members, since
// the dead positions no longer carry a matchable id.
func (t *Tree) ResolveFailures(ctx context.Context, path string, badChain ReplicaChain) (ReplicaChain, error) {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return ReplicaChain{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.findDamagedChainLocked(badChain)
	if idx == -1 {
		return ReplicaChain{}, newError(CodeNotFound, path, nil)
	}

	deadCount := 0
	for _, b := range badChain.BlockNames {
		if b == "" {
			deadCount++
		}
	}
	var replacements []string
	if deadCount > 0 {
		replacements, err = t.allocator.Allocate(deadCount, nil)
		if err != nil {
			return ReplicaChain{}, t.wrapAllocErr(err)
		}
	}

	repaired := ReplicaChain{
		BlockNames: make([]string, len(badChain.BlockNames)),
		SlotBegin:  badChain.SlotBegin,
		SlotEnd:    badChain.SlotEnd,
		Status:     ChainStable,
		Mode:       ModeInMemory,
	}
	r := 0
	for i, b := range badChain.BlockNames {
		if b == "" {
			repaired.BlockNames[i] = replacements[r]
			r++
		} else {
			repaired.BlockNames[i] = b
		}
	}

	autoScale := !n.dstatus.IsStaticProvisioned()
	for i, b := range badChain.BlockNames {
		if b != "" {
			continue
		}
		role := storageRoleOf(repaired.RoleOf(i))
		next := repaired.NextBlock(i)
		if err := t.storage.SetupBlock(ctx, repaired.BlockNames[i], n.dstatus.BackingPath, repaired.SlotBegin, repaired.SlotEnd, repaired.BlockNames, autoScale, role, next); err != nil {
			t.allocator.Free(replacements)
			return ReplicaChain{}, t.wrapStorageErr(err)
		}
	}

	if err := t.storage.ResendPending(ctx, repaired.Head()); err != nil {
		return ReplicaChain{}, t.wrapStorageErr(err)
	}

	n.dstatus.DataBlocks[idx] = repaired
	return repaired, nil
}

// AddReplicaToChain extends chain by one member: allocates a block, appends
// it as the new tail, and rewires the prior tail.
func (t *Tree) AddReplicaToChain(ctx context.Context, path string, chain ReplicaChain) (ReplicaChain, error) {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return ReplicaChain{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.findReplicaChainLocked(chain)
	if idx == -1 {
		return ReplicaChain{}, newError(CodeNotFound, path, nil)
	}
	cur := n.dstatus.DataBlocks[idx]

	newBlocks, err := t.allocator.Allocate(1, nil)
	if err != nil {
		return ReplicaChain{}, t.wrapAllocErr(err)
	}
	newTail := newBlocks[0]

	extended := ReplicaChain{
		BlockNames: append(append([]string(nil), cur.BlockNames...), newTail),
		SlotBegin:  cur.SlotBegin,
		SlotEnd:    cur.SlotEnd,
		Status:     cur.Status,
		Mode:       cur.Mode,
	}

	autoScale := !n.dstatus.IsStaticProvisioned()
	if err := t.storage.SetupBlock(ctx, newTail, n.dstatus.BackingPath, extended.SlotBegin, extended.SlotEnd, extended.BlockNames, autoScale, storageclient.RoleTail, "nil"); err != nil {
		t.allocator.Free(newBlocks)
		return ReplicaChain{}, t.wrapStorageErr(err)
	}

	// The prior tail becomes a mid (or head) and must forward to the new
	// tail, so it gets a fresh setup carrying its new role and next block.
	priorTailIdx := len(extended.BlockNames) - 2
	priorTail := extended.BlockNames[priorTailIdx]
	priorRole := storageRoleOf(extended.RoleOf(priorTailIdx))
	if err := t.storage.SetupBlock(ctx, priorTail, n.dstatus.BackingPath, extended.SlotBegin, extended.SlotEnd, extended.BlockNames, autoScale, priorRole, newTail); err != nil {
		if rerr := t.storage.Reset(ctx, newTail); rerr != nil {
			t.warn("reset failed while rolling back replica addition", map[string]any{"block": newTail, "error": rerr.Error()})
		}
		t.allocator.Free(newBlocks)
		return ReplicaChain{}, t.wrapStorageErr(err)
	}

	n.dstatus.DataBlocks[idx] = extended
	return extended, nil
}

// RemoveDataBlock resets and frees the chain at index i, dropping it from
// the file's data blocks.
func (t *Tree) RemoveDataBlock(ctx context.Context, path string, i int) (ReplicaChain, error) {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return ReplicaChain{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if i < 0 || i >= len(n.dstatus.DataBlocks) {
		return ReplicaChain{}, newError(CodeNotFound, path, nil)
	}
	chain := n.removeDataBlockLocked(i)
	for _, block := range chain.BlockNames {
		if err := t.storage.Reset(ctx, block); err != nil {
			t.warn("reset failed during remove_data_block", map[string]any{"block": block, "error": err.Error()})
		}
	}
	if err := t.allocator.Free(chain.BlockNames); err != nil {
		return ReplicaChain{}, err
	}
	return chain, nil
}

// RemoveAllDataBlocks resets and frees every chain of path.
func (t *Tree) RemoveAllDataBlocks(ctx context.Context, path string) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var all []string
	for _, chain := range n.dstatus.DataBlocks {
		for _, block := range chain.BlockNames {
			if err := t.storage.Reset(ctx, block); err != nil {
				t.warn("reset failed during remove_all_data_blocks", map[string]any{"block": block, "error": err.Error()})
			}
			all = append(all, block)
		}
	}
	n.dstatus.DataBlocks = nil
	if len(all) > 0 {
		return t.allocator.Free(all)
	}
	return nil
}

// --- Sync / Dump / Load ---

// segmentPath identifies a chain within path for the purposes of a
// persistence call: the plain file path when it has a single chain, else
// the file path suffixed with the chain's slot-range segment so
// distinct chains of the same file never collide.
func segmentPath(path string, chain ReplicaChain, numChains int) string {
	if numChains <= 1 {
		return path
	}
	return path + "/" + chain.SlotRangeString()
}

// Sync flushes every chain of path currently in_memory or in_memory_grace
// to its backing path segment, leaving mode unchanged.
func (t *Tree) Sync(ctx context.Context, path, backingPath string) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}
	chains := n.DataBlocks()
	for _, chain := range chains {
		if chain.Mode != ModeInMemory && chain.Mode != ModeInMemoryGrace {
			continue
		}
		if err := t.storage.Sync(ctx, chain.Tail(), backingPath, segmentPath(path, chain, len(chains))); err != nil {
			return t.wrapStorageErr(err)
		}
	}
	return nil
}

// Dump flushes path's tails to backing storage and resets every
// non-tail member, marking each chain's mode on_disk; directories recurse.
// It returns every cleared block id for the caller to free.
func (t *Tree) Dump(ctx context.Context, path, backingPath string) ([]string, error) {
	n, err := t.getNode(path)
	if err != nil {
		return nil, err
	}
	return t.dumpNode(ctx, n, backingPath, path)
}

func (t *Tree) dumpNode(ctx context.Context, n *Node, backingPath, path string) ([]string, error) {
	if n.IsDirectory() {
		var cleared []string
		for _, child := range n.sortedChildren() {
			c, err := t.dumpNode(ctx, child, backingPath, path+"/"+child.Name())
			if err != nil {
				return cleared, err
			}
			cleared = append(cleared, c...)
		}
		return cleared, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var cleared []string
	numChains := len(n.dstatus.DataBlocks)
	for i, chain := range n.dstatus.DataBlocks {
		dest := segmentPath(path, chain, numChains)
		for j, block := range chain.BlockNames {
			if j == len(chain.BlockNames)-1 {
				if err := t.storage.Dump(ctx, block, backingPath, dest); err != nil {
					return cleared, t.wrapStorageErr(err)
				}
				n.markDumpedLocked(i)
			} else {
				if err := t.storage.Reset(ctx, block); err != nil {
					return cleared, t.wrapStorageErr(err)
				}
			}
			cleared = append(cleared, block)
		}
	}
	return cleared, nil
}

// Load re-partitions [0, SlotMax] into numBlocks fresh chains, sets each
// block up against path's prior backing path, and loads its tail from the
// backing store, restoring dstatus to in_memory/stable.
func (t *Tree) Load(ctx context.Context, path string, numBlocks int) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	autoScale := !n.dstatus.IsStaticProvisioned()
	chainLength := n.dstatus.ChainLength
	backingPath := n.dstatus.BackingPath

	ranges := partitionSlots(numBlocks)
	newChains := make([]ReplicaChain, 0, numBlocks)
	for _, r := range ranges {
		blocks, err := t.allocator.Allocate(chainLength, nil)
		if err != nil {
			return t.wrapAllocErr(err)
		}
		chain := ReplicaChain{BlockNames: blocks, SlotBegin: r[0], SlotEnd: r[1], Status: ChainStable, Mode: ModeInMemory}
		src := segmentPath(path, chain, numBlocks)
		for i, block := range blocks {
			role := storageRoleOf(chain.RoleOf(i))
			next := chain.NextBlock(i)
			if err := t.storage.SetupBlock(ctx, block, backingPath, r[0], r[1], blocks, autoScale, role, next); err != nil {
				t.allocator.Free(blocks)
				return t.wrapStorageErr(err)
			}
			if i == len(blocks)-1 {
				if err := t.storage.Load(ctx, block, backingPath, src); err != nil {
					t.allocator.Free(blocks)
					return t.wrapStorageErr(err)
				}
			}
		}
		newChains = append(newChains, chain)
	}

	n.dstatus.DataBlocks = newChains
	return nil
}

// --- Lease expiry ---

// HandleLeaseExpiry applies the lease-expiry rules: a pinned file is left alone, a
// mapped file is flushed like dump but keeps its namespace entry, anything
// else is reset and removed. A directory recurses and is itself removed
// only if every descendant was removed.
func (t *Tree) HandleLeaseExpiry(ctx context.Context, path string) error {
	parent, name, err := t.getParentDir(path)
	if err != nil {
		return err
	}
	child, ok := parent.getChild(name)
	if !ok {
		return newError(CodeNotFound, path, nil)
	}

	removed, err := t.handleLeaseExpiryNode(ctx, child, path)
	if err != nil {
		return err
	}
	if removed {
		return parent.removeChild(name)
	}
	return nil
}

// handleLeaseExpiryNode returns whether the node (and therefore its
// namespace entry) was fully removed.
func (t *Tree) handleLeaseExpiryNode(ctx context.Context, n *Node, path string) (bool, error) {
	if n.IsDirectory() {
		allRemoved := true
		for _, child := range n.sortedChildren() {
			childRemoved, err := t.handleLeaseExpiryNode(ctx, child, path+"/"+child.Name())
			if err != nil {
				return false, err
			}
			if childRemoved {
				_ = n.removeChild(child.Name())
			} else {
				allRemoved = false
			}
		}
		return allRemoved, nil
	}

	if n.FlagsVal().Has(FlagPinned) {
		return false, nil
	}
	if n.FlagsVal().Has(FlagMapped) {
		if _, err := t.dumpNode(ctx, n, n.BackingPath(), path); err != nil {
			return false, err
		}
		return false, nil
	}

	t.teardownFile(ctx, n)
	return true, nil
}
