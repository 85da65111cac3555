// Package blockstore tracks the pool of opaque block identifiers the
// directory core hands out to replica chains, allocating and freeing them
// the way a real deployment's storage nodes would mint and retire blocks.
package blockstore

// BlockAllocator is an exclusive pool of opaque block identifiers with
// advisory hint-based placement.
type BlockAllocator interface {
	// Allocate returns count distinct, currently-free block identifiers.
	// hints is an advisory list (e.g. preferred hosts) implementations may
	// ignore. Fails with ErrOutOfCapacity if fewer than count are free.
	Allocate(count int, hints []string) ([]string, error)

	// Free returns block ids to the pool. Freeing an id that is not
	// currently allocated is ErrNotAllocated.
	Free(blockIDs []string) error

	// NumFree and NumAllocated report pool occupancy. Their sum is
	// constant across the allocator's lifetime.
	NumFree() int
	NumAllocated() int
}
