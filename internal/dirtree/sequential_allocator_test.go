package dirtree_test

import (
	"sync"

	"github.com/mmux-project/elasticmem/internal/blockstore"
)

// sequentialAllocator is a small deterministic blockstore.BlockAllocator
// test double: block ids are the decimal strings "0", "1", "2", ... handed
// out and reclaimed in a fixed order, so assertions can name exact block
// ids.
type sequentialAllocator struct {
	mu   sync.Mutex
	next int
	free []string
	used map[string]struct{}
}

func newSequentialAllocator(capacity int) *sequentialAllocator {
	a := &sequentialAllocator{used: make(map[string]struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		a.free = append(a.free, itoa(i))
	}
	return a
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	return digits
}

func (a *sequentialAllocator) Allocate(count int, hints []string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if count <= 0 {
		return nil, blockstore.ErrInvalidCount
	}
	if len(a.free) < count {
		return nil, blockstore.ErrOutOfCapacity
	}

	out := make([]string, 0, count)
	remaining := a.free[:0]
	taken := 0
	for _, id := range a.free {
		if taken < count {
			out = append(out, id)
			a.used[id] = struct{}{}
			taken++
			continue
		}
		remaining = append(remaining, id)
	}
	a.free = remaining
	return out, nil
}

func (a *sequentialAllocator) Free(blockIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range blockIDs {
		if _, ok := a.used[id]; !ok {
			return blockstore.ErrNotAllocated
		}
		delete(a.used, id)
		a.free = append(a.free, id)
	}
	return nil
}

func (a *sequentialAllocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

func (a *sequentialAllocator) NumAllocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

var _ blockstore.BlockAllocator = (*sequentialAllocator)(nil)
