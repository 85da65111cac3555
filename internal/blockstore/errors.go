package blockstore

import "errors"

var (
	// ErrOutOfCapacity is returned by Allocate when fewer than the
	// requested count of block ids are free.
	ErrOutOfCapacity = errors.New("blockstore: out of capacity")

	// ErrNotAllocated is returned by Free when a given block id was not
	// currently checked out.
	ErrNotAllocated = errors.New("blockstore: block id not allocated")

	// ErrInvalidCount is returned by Allocate for a non-positive count.
	ErrInvalidCount = errors.New("blockstore: invalid allocation count")
)
