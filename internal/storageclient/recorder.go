package storageclient

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is the in-memory storage management test double: every call
// appends a short command string to its log instead of touching a real
// storage node. "clear:<block>" for reset, "flush:<block>:<backing_path>:
// <path>" for dump, "sync:<block>:<backing_path>:<path>" for sync,
// "load:<block>:<backing_path>:<path>" for load.
type Recorder struct {
	mu       sync.Mutex
	commands []string
	sizes    map[string]int64
	capacity int64
}

// NewRecorder constructs an empty Recorder. capacity is the value every
// block reports for StorageCapacity.
func NewRecorder(capacity int64) *Recorder {
	return &Recorder{
		sizes:    make(map[string]int64),
		capacity: capacity,
	}
}

// Commands returns a snapshot of every command issued so far, in order.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

// SetSize fixes the value StorageSize reports for block, for tests that
// drive the add-block donor-selection path.
func (r *Recorder) SetSize(block string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes[block] = size
}

func (r *Recorder) record(cmd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *Recorder) SetupBlock(_ context.Context, block, path string, slotBegin, slotEnd int64, chain []string, autoScale bool, role Role, nextBlock string) error {
	r.record(fmt.Sprintf("setup:%s:%s:%d:%d:%d:%v:%d:%s", block, path, slotBegin, slotEnd, len(chain), autoScale, role, nextBlock))
	return nil
}

func (r *Recorder) SetupAndSetImporting(_ context.Context, block, path string, slotBegin, slotEnd int64, chain []string, role Role, nextBlock string) error {
	r.record(fmt.Sprintf("setup_importing:%s:%s:%d:%d:%d:%d:%s", block, path, slotBegin, slotEnd, len(chain), role, nextBlock))
	return nil
}

func (r *Recorder) SetExporting(_ context.Context, block string, targetChain []string, slotBegin, slotEnd int64) error {
	r.record(fmt.Sprintf("export:%s:%d:%d:%d", block, len(targetChain), slotBegin, slotEnd))
	return nil
}

func (r *Recorder) SetImporting(_ context.Context, block string, slotBegin, slotEnd int64) error {
	r.record(fmt.Sprintf("import:%s:%d:%d", block, slotBegin, slotEnd))
	return nil
}

func (r *Recorder) SetRegular(_ context.Context, block string, slotBegin, slotEnd int64) error {
	r.record(fmt.Sprintf("regular:%s:%d:%d", block, slotBegin, slotEnd))
	return nil
}

func (r *Recorder) Load(_ context.Context, block, backingPath, path string) error {
	r.record(fmt.Sprintf("load:%s:%s:%s", block, backingPath, path))
	return nil
}

func (r *Recorder) Dump(_ context.Context, block, backingPath, path string) error {
	r.record(fmt.Sprintf("flush:%s:%s:%s", block, backingPath, path))
	return nil
}

func (r *Recorder) Sync(_ context.Context, block, backingPath, path string) error {
	r.record(fmt.Sprintf("sync:%s:%s:%s", block, backingPath, path))
	return nil
}

func (r *Recorder) Reset(_ context.Context, block string) error {
	r.record(fmt.Sprintf("clear:%s", block))
	return nil
}

func (r *Recorder) StorageSize(_ context.Context, block string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizes[block], nil
}

func (r *Recorder) StorageCapacity(_ context.Context, block string) (int64, error) {
	return r.capacity, nil
}

func (r *Recorder) ResendPending(_ context.Context, block string) error {
	r.record(fmt.Sprintf("resend:%s", block))
	return nil
}

func (r *Recorder) ForwardAll(_ context.Context, block string) error {
	r.record(fmt.Sprintf("forward:%s", block))
	return nil
}

var _ StorageClient = (*Recorder)(nil)
