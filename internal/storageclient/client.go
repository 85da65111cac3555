// Package storageclient is the directory core's only window onto the
// storage fleet, a capability set kept deliberately narrow so the core
// never has to know how a block is actually hosted.
package storageclient

import "context"

// Role is a block's position within its replica chain, mirrored here
// independent of the directory core's own chain-role type so this package
// has no dependency back on dirtree.
type Role int

const (
	RoleSingleton Role = iota
	RoleHead
	RoleMid
	RoleTail
)

// StorageClient is the abstract capability set the directory core invokes
// against remote storage. Two implementations exist: Recorder, an
// in-memory test double, and RemoteClient, which issues one rpctransport
// message per operation.
type StorageClient interface {
	// SetupBlock installs a block with its chain membership and
	// replication role.
	SetupBlock(ctx context.Context, block, path string, slotBegin, slotEnd int64, chain []string, autoScale bool, role Role, nextBlock string) error

	// SetupAndSetImporting atomically sets up a block and enters it into
	// the importing state.
	SetupAndSetImporting(ctx context.Context, block, path string, slotBegin, slotEnd int64, chain []string, role Role, nextBlock string) error

	// SetExporting marks block's chain as exporting [slotBegin, slotEnd]
	// to targetChain.
	SetExporting(ctx context.Context, block string, targetChain []string, slotBegin, slotEnd int64) error

	// SetImporting marks block's chain as importing [slotBegin, slotEnd].
	SetImporting(ctx context.Context, block string, slotBegin, slotEnd int64) error

	// SetRegular returns block to stable serving over [slotBegin, slotEnd].
	SetRegular(ctx context.Context, block string, slotBegin, slotEnd int64) error

	// Load, Dump, and Sync are persistence ops against a specific block.
	// backingPath is the root prefix shared by an entire dump/load/sync
	// invocation; path identifies the file within it (its namespace path,
	// suffixed with the chain's slot-range segment when a file has more
	// than one chain). Only Dump and Sync flush, only Load reads.
	Load(ctx context.Context, block, backingPath, path string) error
	Dump(ctx context.Context, block, backingPath, path string) error
	Sync(ctx context.Context, block, backingPath, path string) error

	// Reset clears a block's in-memory state.
	Reset(ctx context.Context, block string) error

	StorageSize(ctx context.Context, block string) (int64, error)
	StorageCapacity(ctx context.Context, block string) (int64, error)

	// ResendPending and ForwardAll are chain-repair primitives.
	// resolve_failures calls ResendPending on the repaired chain's head;
	// the directory core does not call ForwardAll.
	ResendPending(ctx context.Context, block string) error
	ForwardAll(ctx context.Context, block string) error
}
