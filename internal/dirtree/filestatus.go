package dirtree

// This file is the file-node data status operations: getters/setters
// guarded by the file node's own lock, plus the dump/load transition
// helpers and the low-level data-block mutators. Each exported method is a
// thin locked wrapper around an unexported "*Locked" helper that assumes
// the caller already holds n.mu; the capacity orchestrator (capacity.go)
// calls the Locked helpers directly because it holds the file's writer
// lock across its entire multi-step protocol and sync.RWMutex is not
// reentrant.

func cloneChains(chains []ReplicaChain) []ReplicaChain {
	out := make([]ReplicaChain, len(chains))
	copy(out, chains)
	for i := range out {
		out[i].BlockNames = append([]string(nil), chains[i].BlockNames...)
	}
	return out
}

func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func (n *Node) dstatusLocked() DataStatus {
	d := n.dstatus
	d.DataBlocks = cloneChains(n.dstatus.DataBlocks)
	d.Tags = cloneTags(n.dstatus.Tags)
	return d
}

// DStatus returns a copy of the file's data status.
func (n *Node) DStatus() DataStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dstatusLocked()
}

// SetDStatus replaces the file's entire data status.
func (n *Node) SetDStatus(d DataStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dstatus = d
}

func (n *Node) BackingPath() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dstatus.BackingPath
}

func (n *Node) SetBackingPath(prefix string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dstatus.BackingPath = prefix
}

func (n *Node) ChainLengthVal() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dstatus.ChainLength
}

func (n *Node) SetChainLength(l int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dstatus.ChainLength = l
}

func (n *Node) FlagsVal() Flags {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dstatus.Flags
}

func (n *Node) SetFlags(f Flags) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dstatus.Flags = f
}

func (n *Node) addTagsLocked(tags map[string]string) {
	if n.dstatus.Tags == nil {
		n.dstatus.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		n.dstatus.Tags[k] = v
	}
}

func (n *Node) AddTags(tags map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addTagsLocked(tags)
}

func (n *Node) Tags() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return cloneTags(n.dstatus.Tags)
}

// ModeAll returns the storage mode of every stable chain, in order.
func (n *Node) ModeAll() []StorageMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	modes := make([]StorageMode, len(n.dstatus.DataBlocks))
	for i, c := range n.dstatus.DataBlocks {
		modes[i] = c.Mode
	}
	return modes
}

func (n *Node) ModeAt(i int) StorageMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dstatus.DataBlocks[i].Mode
}

func (n *Node) SetModeAt(i int, m StorageMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dstatus.DataBlocks[i].Mode = m
}

func (n *Node) SetModeAll(m StorageMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.dstatus.DataBlocks {
		n.dstatus.DataBlocks[i].Mode = m
	}
}

// markDumpedLocked records that chain i's tail has been flushed: its
// storage mode becomes on_disk.
func (n *Node) markDumpedLocked(i int) {
	n.dstatus.DataBlocks[i].Mode = ModeOnDisk
}

func (n *Node) MarkDumped(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.markDumpedLocked(i)
}

// markLoadedLocked records that chain i was (re)loaded with a fresh block
// membership, returning it to in_memory/stable.
func (n *Node) markLoadedLocked(i int, blockNames []string) {
	n.dstatus.DataBlocks[i].BlockNames = append([]string(nil), blockNames...)
	n.dstatus.DataBlocks[i].Mode = ModeInMemory
	n.dstatus.DataBlocks[i].Status = ChainStable
}

func (n *Node) MarkLoaded(i int, blockNames []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.markLoadedLocked(i, blockNames)
}

// addDataBlockLocked inserts chain at position, shifting later chains right.
func (n *Node) addDataBlockLocked(chain ReplicaChain, position int) {
	blocks := n.dstatus.DataBlocks
	blocks = append(blocks, ReplicaChain{})
	copy(blocks[position+1:], blocks[position:])
	blocks[position] = chain
	n.dstatus.DataBlocks = blocks
}

func (n *Node) AddDataBlock(chain ReplicaChain, position int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addDataBlockLocked(chain, position)
}

// removeDataBlockLocked deletes the chain at index i and returns it.
func (n *Node) removeDataBlockLocked(i int) ReplicaChain {
	removed := n.dstatus.DataBlocks[i]
	n.dstatus.DataBlocks = append(n.dstatus.DataBlocks[:i], n.dstatus.DataBlocks[i+1:]...)
	return removed
}

func (n *Node) RemoveDataBlock(i int) ReplicaChain {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.removeDataBlockLocked(i)
}

func (n *Node) updateDataBlockSlotsLocked(i int, begin, end int64) {
	n.dstatus.DataBlocks[i].SlotBegin = begin
	n.dstatus.DataBlocks[i].SlotEnd = end
}

func (n *Node) UpdateDataBlockSlots(i int, begin, end int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updateDataBlockSlotsLocked(i, begin, end)
}

func (n *Node) setDataBlockStatusLocked(i int, status ChainStatus) {
	n.dstatus.DataBlocks[i].Status = status
}

func (n *Node) SetDataBlockStatus(i int, status ChainStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setDataBlockStatusLocked(i, status)
}

func (n *Node) getDataBlockStatusLocked(i int) ChainStatus {
	return n.dstatus.DataBlocks[i].Status
}

func (n *Node) GetDataBlockStatus(i int) ChainStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.getDataBlockStatusLocked(i)
}

func (n *Node) findReplicaChainLocked(target ReplicaChain) int {
	return n.dstatus.FindReplicaChain(target)
}

func (n *Node) findDamagedChainLocked(target ReplicaChain) int {
	return n.dstatus.FindDamagedChain(target)
}

// FindReplicaChain returns the index of target within the stable data
// blocks, or -1.
func (n *Node) FindReplicaChain(target ReplicaChain) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.findReplicaChainLocked(target)
}

// DataBlocks returns a copy of the stable chains.
func (n *Node) DataBlocks() []ReplicaChain {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return cloneChains(n.dstatus.DataBlocks)
}

// AllDataBlocks returns the stable chains plus the in-flight adding chains.
func (n *Node) AllDataBlocks() []ReplicaChain {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := cloneChains(n.dstatus.DataBlocks)
	out = append(out, cloneChains(n.adding)...)
	return out
}

func (n *Node) NumBlocks() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.dstatus.DataBlocks) + len(n.adding)
}

func (n *Node) addAddingLocked(chain ReplicaChain) {
	n.adding = append(n.adding, chain)
}

func (n *Node) removeAddingLocked(chain ReplicaChain) error {
	for i, c := range n.adding {
		if c.Equal(chain) {
			n.adding = append(n.adding[:i], n.adding[i+1:]...)
			return nil
		}
	}
	return newError(CodeNotFound, "chain not found in adding list", nil)
}
