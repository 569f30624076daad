// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package fsscan

// ComputeDiff returns the set-algebraic difference between newTree
// and oldTree: added (in new, not in old by path), removed (in old,
// not in new by path), and changed (same path, different digest — a
// size-only change with an unchanged digest is not a change).
func ComputeDiff(newTree, oldTree *Tree) *Diff {
	oldByPath := oldTree.ByPath()
	newByPath := newTree.ByPath()

	diff := &Diff{}
	for _, f := range newTree.Files {
		old, existed := oldByPath[f.Path]
		switch {
		case !existed:
			diff.Added = append(diff.Added, f)
		case old.Digest != f.Digest:
			diff.Changed = append(diff.Changed, f)
		}
	}
	for _, f := range oldTree.Files {
		if _, existsInNew := newByPath[f.Path]; !existsInNew {
			diff.Removed = append(diff.Removed, f)
		}
	}
	return diff
}