package blockstore

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
)

// InMemoryBlockAllocator is a process-local pool of opaque block ids, sized
// at construction and never grown, a stand-in for however many blocks the
// storage fleet actually has free.
type InMemoryBlockAllocator struct {
	mu    sync.Mutex
	free  map[string]struct{}
	inUse map[string]struct{}
	rng   *rand.Rand
}

// NewInMemoryBlockAllocator seeds the pool with capacity freshly-minted
// block ids.
func NewInMemoryBlockAllocator(capacity int) *InMemoryBlockAllocator {
	free := make(map[string]struct{}, capacity)
	for i := 0; i < capacity; i++ {
		free[uuid.NewString()] = struct{}{}
	}

	return &InMemoryBlockAllocator{
		free:  free,
		inUse: make(map[string]struct{}, capacity),
		rng:   rand.New(rand.NewSource(uint64(capacity) + 1)),
	}
}

func (a *InMemoryBlockAllocator) Allocate(count int, hints []string) ([]string, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) < count {
		return nil, ErrOutOfCapacity
	}

	candidates := make([]string, 0, len(a.free))

	// Hinted ids that happen to still be free go first; this lets a caller
	// re-request a specific id it has seen before (e.g. when repairing a
	// failed chain) without changing the allocator's general shuffle
	// behavior.
	seen := make(map[string]struct{}, len(hints))
	for _, h := range hints {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		if _, free := a.free[h]; free {
			candidates = append(candidates, h)
		}
	}

	rest := make([]string, 0, len(a.free))
	for id := range a.free {
		if _, used := seen[id]; used {
			continue
		}
		rest = append(rest, id)
	}
	a.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	candidates = append(candidates, rest...)

	allocated := candidates[:count]
	for _, id := range allocated {
		delete(a.free, id)
		a.inUse[id] = struct{}{}
	}

	return allocated, nil
}

func (a *InMemoryBlockAllocator) Free(blockIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range blockIDs {
		if _, ok := a.inUse[id]; !ok {
			return ErrNotAllocated
		}
	}

	for _, id := range blockIDs {
		delete(a.inUse, id)
		a.free[id] = struct{}{}
	}

	return nil
}

func (a *InMemoryBlockAllocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

func (a *InMemoryBlockAllocator) NumAllocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

var _ BlockAllocator = (*InMemoryBlockAllocator)(nil)
