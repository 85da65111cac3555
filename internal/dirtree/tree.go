package dirtree

import (
	"context"
	"time"

	"github.com/mmux-project/elasticmem/internal/blockstore"
	"github.com/mmux-project/elasticmem/internal/log_service"
	"github.com/mmux-project/elasticmem/internal/storageclient"
)

// Tree is the in-memory namespace: a hierarchy of directory and file
// nodes, each independently locked, atop which the capacity orchestrator
// (capacity.go) runs its protocols. There is no global tree lock; every
// node guards its own state.
type Tree struct {
	root      *Node
	allocator blockstore.BlockAllocator
	storage   storageclient.StorageClient
	ls        log_service.LogService
}

// NewTree constructs an empty tree with just the root directory.
func NewTree(allocator blockstore.BlockAllocator, storage storageclient.StorageClient, ls log_service.LogService) *Tree {
	return &Tree{
		root:      newDirNode("/", All, nowMs()),
		allocator: allocator,
		storage:   storage,
		ls:        ls,
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// --- Path resolution ---

// getNode walks from the root to path, taking a reader lock on each
// directory traversed and releasing it before descending.
func (t *Tree) getNode(path string) (*Node, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if clean == "/" {
		return t.root, nil
	}

	cur := t.root
	for _, part := range splitParts(clean) {
		if !cur.IsDirectory() {
			return nil, newError(CodeNotDirectory, clean, nil)
		}
		child, ok := cur.getChild(part)
		if !ok {
			return nil, newError(CodeNotFound, clean, nil)
		}
		cur = child
	}
	return cur, nil
}

func (t *Tree) getNodeAsDir(path string) (*Node, error) {
	n, err := t.getNode(path)
	if err != nil {
		return nil, err
	}
	if !n.IsDirectory() {
		return nil, newError(CodeNotDirectory, path, nil)
	}
	return n, nil
}

func (t *Tree) getNodeAsFile(path string) (*Node, error) {
	n, err := t.getNode(path)
	if err != nil {
		return nil, err
	}
	if n.IsDirectory() {
		return nil, newError(CodeIsDirectory, path, nil)
	}
	return n, nil
}

// getParentDir resolves the directory that should contain path's final
// component, returning it along with that component's name.
func (t *Tree) getParentDir(path string) (parent *Node, name string, err error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, "", err
	}
	parentPath, name := splitParent(clean)
	parent, err = t.getNodeAsDir(parentPath)
	if err != nil {
		return nil, "", err
	}
	return parent, name, nil
}

// --- Directory operations ---

// CreateDirectory creates a single directory; its parent must already
// exist.
func (t *Tree) CreateDirectory(path string) error {
	parent, name, err := t.getParentDir(path)
	if err != nil {
		return err
	}
	if name == "" {
		return newError(CodeExists, path, nil)
	}
	now := nowMs()
	if err := parent.addChild(newDirNode(name, All, now)); err != nil {
		return err
	}
	t.touchAncestors(path, now)
	return nil
}

// CreateDirectories creates path and every missing ancestor, like `mkdir -p`.
func (t *Tree) CreateDirectories(path string) error {
	clean, err := CleanPath(path)
	if err != nil {
		return err
	}
	if clean == "/" {
		return nil
	}

	cur := t.root
	now := nowMs()
	built := "/"
	for _, part := range splitParts(clean) {
		if !cur.IsDirectory() {
			return newError(CodeNotDirectory, built, nil)
		}
		child, ok := cur.getChild(part)
		if !ok {
			child = newDirNode(part, All, now)
			if err := cur.addChild(child); err != nil {
				// Lost a race with a concurrent creator; re-read and continue.
				child, ok = cur.getChild(part)
				if !ok {
					return err
				}
			}
		}
		if built == "/" {
			built = "/" + part
		} else {
			built = built + "/" + part
		}
		cur = child
	}
	if !cur.IsDirectory() {
		return newError(CodeNotDirectory, built, nil)
	}
	return nil
}

// CreateFileOptions carries the parameters of Create.
type CreateFileOptions struct {
	BackingPath string
	NumBlocks   int
	ChainLength int
	Flags       Flags
	Permissions Permissions
	Tags        map[string]string
}

// Create creates a regular file at path, allocating NumBlocks*ChainLength
// blocks partitioned across [0, SlotMax] and wiring them up on the storage
// fleet.
func (t *Tree) Create(ctx context.Context, path string, opts CreateFileOptions) (DataStatus, error) {
	if opts.NumBlocks <= 0 {
		opts.NumBlocks = 1
	}
	if opts.ChainLength <= 0 {
		opts.ChainLength = 1
	}

	clean, err := CleanPath(path)
	if err != nil {
		return DataStatus{}, err
	}
	parentPath, name := splitParent(clean)
	if name == "" {
		return DataStatus{}, newError(CodeExists, path, nil)
	}
	if err := t.CreateDirectories(parentPath); err != nil {
		return DataStatus{}, err
	}
	parent, err := t.getNodeAsDir(parentPath)
	if err != nil {
		return DataStatus{}, err
	}
	if _, exists := parent.getChild(name); exists {
		return DataStatus{}, newError(CodeExists, path, nil)
	}

	dstatus, err := t.setupNewFile(ctx, clean, opts)
	if err != nil {
		return DataStatus{}, err
	}

	now := nowMs()
	node := newFileNode(name, opts.Permissions, now, dstatus)
	if err := parent.addChild(node); err != nil {
		t.bestEffortTeardown(ctx, dstatus)
		return DataStatus{}, err
	}
	t.touchAncestors(path, now)
	return dstatus, nil
}

// Open returns the data status of the file at path.
func (t *Tree) Open(path string) (DataStatus, error) {
	n, err := t.getNode(path)
	if err != nil {
		return DataStatus{}, err
	}
	if n.IsDirectory() {
		return DataStatus{}, newError(CodeIsDirectory, path, nil)
	}
	return n.DStatus(), nil
}

// OpenOrCreate is atomic from the caller's perspective: creates iff absent,
// else opens.
func (t *Tree) OpenOrCreate(ctx context.Context, path string, opts CreateFileOptions) (DataStatus, error) {
	ds, err := t.Open(path)
	if err == nil {
		return ds, nil
	}
	if code, ok := CodeOf(err); !ok || code != CodeNotFound {
		return DataStatus{}, err
	}
	ds, err = t.Create(ctx, path, opts)
	if err == nil {
		return ds, nil
	}
	if code, ok := CodeOf(err); ok && code == CodeExists {
		return t.Open(path)
	}
	return DataStatus{}, err
}

func (t *Tree) Exists(path string) bool {
	_, err := t.getNode(path)
	return err == nil
}

func (t *Tree) IsDirectory(path string) bool {
	n, err := t.getNode(path)
	return err == nil && n.IsDirectory()
}

func (t *Tree) IsRegularFile(path string) bool {
	n, err := t.getNode(path)
	return err == nil && n.IsRegularFile()
}

func (t *Tree) Status(path string) (FileStatus, error) {
	n, err := t.getNode(path)
	if err != nil {
		return FileStatus{}, err
	}
	return n.Status(), nil
}

func (t *Tree) LastWriteTime(path string) (int64, error) {
	st, err := t.Status(path)
	if err != nil {
		return 0, err
	}
	return st.LastWriteTimeMs, nil
}

func (t *Tree) GetPermissions(path string) (Permissions, error) {
	st, err := t.Status(path)
	if err != nil {
		return 0, err
	}
	return st.Permissions, nil
}

func (t *Tree) SetPermissions(path string, prms Permissions, opt PermOption) error {
	n, err := t.getNode(path)
	if err != nil {
		return err
	}
	n.setPermissions(opt, prms)
	return nil
}

func (t *Tree) DStatus(path string) (DataStatus, error) {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return DataStatus{}, err
	}
	return n.DStatus(), nil
}

func (t *Tree) AddTags(path string, tags map[string]string) error {
	n, err := t.getNodeAsFile(path)
	if err != nil {
		return err
	}
	n.AddTags(tags)
	return nil
}

// Touch updates last_write_time of path and every ancestor up to root to
// "now". On a directory it recursively updates the directory's own time
// and every descendant's time to that same value.
func (t *Tree) Touch(path string) error {
	n, err := t.getNode(path)
	if err != nil {
		return err
	}
	now := nowMs()
	touchSubtree(n, now)
	t.touchAncestors(path, now)
	return nil
}

func touchSubtree(n *Node, now int64) {
	n.touch(now)
	if n.IsDirectory() {
		for _, child := range n.sortedChildren() {
			touchSubtree(child, now)
		}
	}
}

// touchAncestors advances last_write_time on every ancestor of path, root
// included, without revisiting path's own node.
func (t *Tree) touchAncestors(path string, now int64) {
	clean, err := CleanPath(path)
	if err != nil {
		return
	}
	t.root.touch(now)
	if clean == "/" {
		return
	}
	cur := t.root
	parts := splitParts(clean)
	for _, part := range parts[:len(parts)-1] {
		child, ok := cur.getChild(part)
		if !ok {
			return
		}
		child.touch(now)
		cur = child
	}
}

// Rename moves old to new. The target must not exist; naming the target
// with a trailing slash is rejected. Cross-directory renames lock
// both parent directories in canonical (full-path lexicographic) order to
// avoid deadlock with a concurrent reverse rename.
func (t *Tree) Rename(oldPath, newPath string) error {
	if len(newPath) > 0 && newPath[len(newPath)-1] == '/' {
		return newError(CodeInvalidArgument, "rename target must name the entry, not a directory: "+newPath, nil)
	}

	oldClean, err := CleanPath(oldPath)
	if err != nil {
		return err
	}
	newClean, err := CleanPath(newPath)
	if err != nil {
		return err
	}

	oldParentPath, oldName := splitParent(oldClean)
	newParentPath, newName := splitParent(newClean)
	if oldName == "" || newName == "" {
		return newError(CodeInvalidArgument, "cannot rename the root", nil)
	}

	oldParent, err := t.getNodeAsDir(oldParentPath)
	if err != nil {
		return err
	}
	newParent, err := t.getNodeAsDir(newParentPath)
	if err != nil {
		return err
	}

	if oldParent == newParent {
		oldParent.mu.Lock()
		child, ok := oldParent.children[oldName]
		if !ok {
			oldParent.mu.Unlock()
			return newError(CodeNotFound, oldPath, nil)
		}
		if _, exists := oldParent.children[newName]; exists {
			oldParent.mu.Unlock()
			return newError(CodeExists, newPath, nil)
		}
		delete(oldParent.children, oldName)
		child.mu.Lock()
		child.name = newName
		child.mu.Unlock()
		oldParent.children[newName] = child
		oldParent.mu.Unlock()

		t.touchAncestors(newPath, nowMs())
		return nil
	}

	// Canonical lock order: full path, lexicographic.
	first, second := oldParent, newParent
	if newParentPath < oldParentPath {
		first, second = newParent, oldParent
	}
	first.mu.Lock()
	second.mu.Lock()
	unlock := func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}

	child, ok := oldParent.children[oldName]
	if !ok {
		unlock()
		return newError(CodeNotFound, oldPath, nil)
	}
	if _, exists := newParent.children[newName]; exists {
		unlock()
		return newError(CodeExists, newPath, nil)
	}
	delete(oldParent.children, oldName)
	child.mu.Lock()
	child.name = newName
	child.mu.Unlock()
	newParent.children[newName] = child
	// Both parents are ancestors touched below; release them first, since
	// touch takes each node's writer lock.
	unlock()

	now := nowMs()
	t.touchAncestors(newPath, now)
	t.touchAncestors(oldPath, now)
	return nil
}

// Remove removes a file, or an empty directory. Non-empty
// directories fail CodeDirectoryNotEmpty.
func (t *Tree) Remove(ctx context.Context, path string) error {
	parent, name, err := t.getParentDir(path)
	if err != nil {
		return err
	}
	child, ok := parent.getChild(name)
	if !ok {
		return newError(CodeNotFound, path, nil)
	}
	if child.IsDirectory() && child.numChildren() > 0 {
		return newError(CodeDirectoryNotEmpty, path, nil)
	}
	if child.IsRegularFile() {
		t.teardownFile(ctx, child)
	}
	return parent.removeChild(name)
}

// RemoveAll recursively resets and frees every file under path, then
// removes path itself.
func (t *Tree) RemoveAll(ctx context.Context, path string) error {
	parent, name, err := t.getParentDir(path)
	if err != nil {
		return err
	}
	child, ok := parent.getChild(name)
	if !ok {
		return newError(CodeNotFound, path, nil)
	}
	t.removeAllSubtree(ctx, child)
	return parent.removeChild(name)
}

func (t *Tree) removeAllSubtree(ctx context.Context, n *Node) {
	if n.IsDirectory() {
		for _, child := range n.sortedChildren() {
			t.removeAllSubtree(ctx, child)
		}
		return
	}
	t.teardownFile(ctx, n)
}

// DirectoryEntries returns path's immediate children, sorted by name.
func (t *Tree) DirectoryEntries(path string) ([]DirectoryEntry, error) {
	n, err := t.getNodeAsDir(path)
	if err != nil {
		return nil, err
	}
	return n.sortedEntries(), nil
}

// RecursiveDirectoryEntries walks path's subtree pre-order depth-first, not
// including path itself; within each directory children appear in
// directory_entries order.
func (t *Tree) RecursiveDirectoryEntries(path string) ([]DirectoryEntry, error) {
	n, err := t.getNodeAsDir(path)
	if err != nil {
		return nil, err
	}
	var out []DirectoryEntry
	collectRecursive(n, &out)
	return out, nil
}

func collectRecursive(n *Node, out *[]DirectoryEntry) {
	for _, child := range n.sortedChildren() {
		*out = append(*out, entryOf(child))
		if child.IsDirectory() {
			collectRecursive(child, out)
		}
	}
}

// FileSize is the sum of storage_size(tail) over every chain of a file; for
// a directory, the recursive sum over contained files.
func (t *Tree) FileSize(ctx context.Context, path string) (int64, error) {
	n, err := t.getNode(path)
	if err != nil {
		return 0, err
	}
	return t.sizeOf(ctx, n)
}

func (t *Tree) sizeOf(ctx context.Context, n *Node) (int64, error) {
	if n.IsDirectory() {
		var total int64
		for _, child := range n.sortedChildren() {
			sz, err := t.sizeOf(ctx, child)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	}

	var total int64
	for _, chain := range n.DataBlocks() {
		sz, err := t.storage.StorageSize(ctx, chain.Tail())
		if err != nil {
			return 0, t.wrapStorageErr(err)
		}
		total += sz
	}
	return total, nil
}
