// Package workers holds the background loops of the directory service: the
// mapped-file sync sweep, the lease-expiry sweep, and the file-size tracker.
// Each worker owns one goroutine and a stop channel; Start launches the
// loop, Stop closes the channel and joins. Workers reach the namespace only
// through the tree's public operations and hold nothing between iterations.
package workers

import (
	"github.com/mmux-project/elasticmem/internal/dirtree"
)

// filePaths walks the subtree under dir through the tree's public listing
// operation and returns the full path of every regular file, pre-order.
// Files that vanish mid-walk are simply skipped on the next operation.
func filePaths(tree *dirtree.Tree, dir string) []string {
	entries, err := tree.DirectoryEntries(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		child := dir + "/" + e.Name
		if dir == "/" {
			child = "/" + e.Name
		}
		if e.Status.Type == dirtree.TypeDirectory {
			out = append(out, filePaths(tree, child)...)
		} else {
			out = append(out, child)
		}
	}
	return out
}
