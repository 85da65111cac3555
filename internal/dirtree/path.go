// Package dirtree implements the in-memory namespace tree and the
// capacity-management protocols: a
// hierarchy of directory and file nodes, each guarded by its own lock, atop
// which add-block, split, merge, resolve-failures, and persistence
// operations are orchestrated against a storage management client.
package dirtree

import (
	"path"
	"strings"
)

// SlotMax is the inclusive upper bound of the hash-slot space every file's
// replica chains partition; slots range over [0, SlotMax].
const SlotMax int64 = 65535

// CleanPath normalizes p into an absolute, `/`-separated path with no empty
// components other than the root itself. It fails with CodeInvalidArgument
// if p is not absolute. Built on the standard library's path package: paths here
// are an abstract, slash-separated namespace, not a filesystem surface, and
// nothing in the example pack ships a path library that fits better than
// what path.Clean already does.
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", newError(CodeInvalidArgument, "path must be absolute: "+p, nil)
	}
	return path.Clean(p), nil
}

// splitParts splits a path into its non-empty, non-"." components.
func splitParts(p string) []string {
	raw := strings.Split(p, "/")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if part == "" || part == "." {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// splitParent splits a normalized path into its parent directory path and
// its final component. For "/" it returns ("/", "").
func splitParent(p string) (parent, name string) {
	parts := splitParts(p)
	if len(parts) == 0 {
		return "/", ""
	}
	name = parts[len(parts)-1]
	if len(parts) == 1 {
		return "/", name
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), name
}

// isAncestor reports whether ancestor is a (non-strict) prefix directory of
// p in path-component terms.
func isAncestor(ancestor, p string) bool {
	if ancestor == "/" {
		return true
	}
	return p == ancestor || strings.HasPrefix(p, ancestor+"/")
}
