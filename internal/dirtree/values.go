package dirtree

import (
	"fmt"
	"strconv"
	"strings"
)

// FileType distinguishes a namespace node's kind.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
)

func (t FileType) String() string {
	if t == TypeDirectory {
		return "directory"
	}
	return "regular"
}

// StorageMode is the persistence state of one replica chain.
type StorageMode int

const (
	ModeInMemory StorageMode = iota
	ModeInMemoryGrace
	ModeFlushing
	ModeOnDisk
)

func (m StorageMode) String() string {
	switch m {
	case ModeInMemory:
		return "in_memory"
	case ModeInMemoryGrace:
		return "in_memory_grace"
	case ModeFlushing:
		return "flushing"
	case ModeOnDisk:
		return "on_disk"
	default:
		return "unknown"
	}
}

// ChainRole is a block's position within its replica chain.
type ChainRole int

const (
	RoleSingleton ChainRole = iota
	RoleHead
	RoleMid
	RoleTail
)

// ChainStatus drives the slot re-partitioning state machine.
type ChainStatus int

const (
	ChainStable ChainStatus = iota
	ChainExporting
	ChainImporting
)

// Flags is the per-file flag bitset.
type Flags int32

const (
	FlagPinned Flags = 1 << iota
	FlagMapped
	FlagStaticProvisioned
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// FileStatus is the attribute set every namespace node carries.
type FileStatus struct {
	Type            FileType
	Permissions     Permissions
	LastWriteTimeMs int64
}

// ReplicaChain is an ordered sequence of block ids replicating one slot
// range via chain replication. BlockNames[0] is the head,
// BlockNames[len-1] the tail.
type ReplicaChain struct {
	BlockNames []string
	SlotBegin  int64
	SlotEnd    int64
	Status     ChainStatus
	Mode       StorageMode
}

// NumSlots returns the number of slots this chain's range covers.
func (c ReplicaChain) NumSlots() int64 { return c.SlotEnd - c.SlotBegin + 1 }

// Head and Tail return the first and last block in the chain. A
// single-block chain's head and tail are the same block.
func (c ReplicaChain) Head() string { return c.BlockNames[0] }
func (c ReplicaChain) Tail() string { return c.BlockNames[len(c.BlockNames)-1] }

// ChainLength is the chain's replication factor.
func (c ReplicaChain) ChainLength() int { return len(c.BlockNames) }

// RoleOf returns the chain role of the i-th block in the chain.
func (c ReplicaChain) RoleOf(i int) ChainRole {
	switch {
	case len(c.BlockNames) == 1:
		return RoleSingleton
	case i == 0:
		return RoleHead
	case i == len(c.BlockNames)-1:
		return RoleTail
	default:
		return RoleMid
	}
}

// NextBlock returns the block id the i-th member should forward to, or
// "nil" for the tail, mirroring the storage management wire convention.
func (c ReplicaChain) NextBlock(i int) string {
	if i == len(c.BlockNames)-1 {
		return "nil"
	}
	return c.BlockNames[i+1]
}

// SlotRangeString is the backing-path segment for this chain's range:
// "{begin}_{end}", decimal, no padding.
func (c ReplicaChain) SlotRangeString() string {
	return strconv.FormatInt(c.SlotBegin, 10) + "_" + strconv.FormatInt(c.SlotEnd, 10)
}

// Equal compares two chains by block membership and range, ignoring status
// and mode, so callers can find a chain in a slice after its status has
// changed underneath them.
func (c ReplicaChain) Equal(o ReplicaChain) bool {
	if c.SlotBegin != o.SlotBegin || c.SlotEnd != o.SlotEnd || len(c.BlockNames) != len(o.BlockNames) {
		return false
	}
	for i := range c.BlockNames {
		if c.BlockNames[i] != o.BlockNames[i] {
			return false
		}
	}
	return true
}

func (c ReplicaChain) String() string {
	return fmt.Sprintf("chain{%s [%d,%d] %v}", strings.Join(c.BlockNames, ","), c.SlotBegin, c.SlotEnd, c.Status)
}

// DataStatus is the observable, wire-visible state of a file.
type DataStatus struct {
	BackingPath  string
	ChainLength  int
	DataBlocks   []ReplicaChain
	Flags        Flags
	Tags         map[string]string
}

func (d DataStatus) IsPinned() bool           { return d.Flags.Has(FlagPinned) }
func (d DataStatus) IsMapped() bool           { return d.Flags.Has(FlagMapped) }
func (d DataStatus) IsStaticProvisioned() bool { return d.Flags.Has(FlagStaticProvisioned) }

// FindReplicaChain returns the index of the chain matching target by block
// membership and range, or -1 if not present.
func (d DataStatus) FindReplicaChain(target ReplicaChain) int {
	for i, c := range d.DataBlocks {
		if c.Equal(target) {
			return i
		}
	}
	return -1
}

// matchesSurvivors reports whether c is the stored chain target describes.
// Empty names in target.BlockNames mark dead members and match any stored
// id at that position; everything else must line up exactly.
func (c ReplicaChain) matchesSurvivors(target ReplicaChain) bool {
	if c.SlotBegin != target.SlotBegin || c.SlotEnd != target.SlotEnd || len(c.BlockNames) != len(target.BlockNames) {
		return false
	}
	for i, b := range target.BlockNames {
		if b != "" && c.BlockNames[i] != b {
			return false
		}
	}
	return true
}

// FindDamagedChain returns the index of the chain target describes, where
// target may carry empty names for dead members, or -1 if no chain has the
// same range, length, and surviving members.
func (d DataStatus) FindDamagedChain(target ReplicaChain) int {
	for i, c := range d.DataBlocks {
		if c.matchesSurvivors(target) {
			return i
		}
	}
	return -1
}
