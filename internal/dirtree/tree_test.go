package dirtree_test

import (
	"context"
	"testing"

	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/storageclient"
)

func newTestTree(capacity int) (*dirtree.Tree, *sequentialAllocator, *storageclient.Recorder) {
	alloc := newSequentialAllocator(capacity)
	rec := storageclient.NewRecorder(1024)
	tree := dirtree.NewTree(alloc, rec, noopLogService{})
	return tree, alloc, rec
}

func mustCreateFile(t *testing.T, tree *dirtree.Tree, path string, numBlocks, chainLength int) dirtree.DataStatus {
	t.Helper()
	ds, err := tree.Create(context.Background(), path, dirtree.CreateFileOptions{
		BackingPath: "/tmp",
		NumBlocks:   numBlocks,
		ChainLength: chainLength,
		Permissions: dirtree.All,
	})
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return ds
}

func TestCreateDirectoriesBuildsAncestors(t *testing.T) {
	tree, _, _ := newTestTree(4)

	if err := tree.CreateDirectories("/sandbox/1/2/a"); err != nil {
		t.Fatalf("create_directories: %v", err)
	}
	for _, p := range []string{"/sandbox", "/sandbox/1", "/sandbox/1/2", "/sandbox/1/2/a"} {
		if !tree.IsDirectory(p) {
			t.Errorf("expected %s to be a directory", p)
		}
	}

	err := tree.CreateDirectory("/sandbox/1/1/b")
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeNotFound {
		t.Fatalf("create_directory on missing parent: got %v, want not_found", err)
	}
}

func TestCreateFileAndNotDirectory(t *testing.T) {
	tree, _, _ := newTestTree(4)

	mustCreateFile(t, tree, "/sandbox/a.txt", 1, 1)
	if !tree.IsRegularFile("/sandbox/a.txt") {
		t.Fatalf("expected /sandbox/a.txt to be a regular file")
	}

	mustCreateFile(t, tree, "/sandbox/foo/bar/baz/a", 1, 1)
	_, err := tree.Create(context.Background(), "/sandbox/foo/bar/baz/a/b", dirtree.CreateFileOptions{BackingPath: "/tmp"})
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeNotDirectory {
		t.Fatalf("create under a file: got %v, want not_directory", err)
	}
}

func TestTouchDirectoryPropagatesToChild(t *testing.T) {
	tree, _, _ := newTestTree(4)
	mustCreateFile(t, tree, "/sandbox/file", 1, 1)

	before, err := tree.LastWriteTime("/sandbox")
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Touch("/sandbox"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	dirTime, err := tree.LastWriteTime("/sandbox")
	if err != nil {
		t.Fatal(err)
	}
	fileTime, err := tree.LastWriteTime("/sandbox/file")
	if err != nil {
		t.Fatal(err)
	}
	if dirTime != fileTime {
		t.Fatalf("touch on directory should propagate to child: dir=%d file=%d", dirTime, fileTime)
	}
	if dirTime < before {
		t.Fatalf("last_write_time must be monotone non-decreasing: before=%d after=%d", before, dirTime)
	}
}

func TestSetPermissionsReplaceAddRemove(t *testing.T) {
	tree, _, _ := newTestTree(4)
	if err := tree.CreateDirectory("/p"); err != nil {
		t.Fatal(err)
	}

	if err := tree.SetPermissions("/p", dirtree.OwnerAll|dirtree.GroupAll, dirtree.PermReplace); err != nil {
		t.Fatal(err)
	}
	got, err := tree.GetPermissions("/p")
	if err != nil {
		t.Fatal(err)
	}
	if want := dirtree.OwnerAll | dirtree.GroupAll; got != want {
		t.Fatalf("after replace: got %b want %b", got, want)
	}

	if err := tree.SetPermissions("/p", dirtree.OthersAll, dirtree.PermAdd); err != nil {
		t.Fatal(err)
	}
	got, _ = tree.GetPermissions("/p")
	if want := dirtree.OwnerAll | dirtree.GroupAll | dirtree.OthersAll; got != want {
		t.Fatalf("after add: got %b want %b", got, want)
	}

	if err := tree.SetPermissions("/p", dirtree.GroupAll|dirtree.OthersAll, dirtree.PermRemove); err != nil {
		t.Fatal(err)
	}
	got, _ = tree.GetPermissions("/p")
	if want := dirtree.OwnerAll; got != want {
		t.Fatalf("after remove: got %b want %b", got, want)
	}
}

func TestRenameAcrossDirectoriesPreservesSubtree(t *testing.T) {
	tree, _, _ := newTestTree(4)
	if err := tree.CreateDirectories("/a/sub"); err != nil {
		t.Fatal(err)
	}
	if err := tree.CreateDirectory("/b"); err != nil {
		t.Fatal(err)
	}
	mustCreateFile(t, tree, "/a/sub/file", 1, 1)

	before, err := tree.RecursiveDirectoryEntries("/a")
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Rename("/a/sub", "/b/sub"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if tree.Exists("/a/sub") {
		t.Fatalf("old path should no longer exist")
	}
	after, err := tree.RecursiveDirectoryEntries("/b")
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("rename should preserve subtree content: before=%d after=%d", len(before), len(after))
	}
}

func TestRenameWithinDirectory(t *testing.T) {
	tree, _, _ := newTestTree(4)
	before := mustCreateFile(t, tree, "/dir/a", 1, 1)

	if err := tree.Rename("/dir/a", "/dir/b"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if tree.Exists("/dir/a") {
		t.Fatalf("old name should no longer exist")
	}
	after, err := tree.DStatus("/dir/b")
	if err != nil {
		t.Fatalf("dstatus of renamed file: %v", err)
	}
	if after.FindReplicaChain(before.DataBlocks[0]) != 0 {
		t.Fatalf("rename must carry the file's data status: %v", after.DataBlocks)
	}

	entries, err := tree.DirectoryEntries("/dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "b" {
		t.Fatalf("directory should list exactly the new name: %v", entries)
	}

	mustCreateFile(t, tree, "/dir/c", 1, 1)
	err = tree.Rename("/dir/b", "/dir/c")
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeExists {
		t.Fatalf("rename onto an existing sibling: got %v, want exists", err)
	}
}

func TestRenameRejectsTrailingSlashTarget(t *testing.T) {
	tree, _, _ := newTestTree(4)
	mustCreateFile(t, tree, "/a", 1, 1)

	err := tree.Rename("/a", "/b/")
	if code, ok := dirtree.CodeOf(err); !ok || code != dirtree.CodeInvalidArgument {
		t.Fatalf("rename with trailing slash target: got %v, want invalid_argument", err)
	}
}

func TestDirectoryEntriesSortedByName(t *testing.T) {
	tree, _, _ := newTestTree(4)
	if err := tree.CreateDirectory("/d"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/d/charlie", "/d/alpha", "/d/bravo"} {
		if err := tree.CreateDirectory(name); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := tree.DirectoryEntries("/d")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Fatalf("entry %d: got %s want %s", i, e.Name, want[i])
		}
	}
}
