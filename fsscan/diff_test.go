// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package fsscan

import "testing"

func TestComputeDiffIdenticalTreesHaveNoChanges(t *testing.T) {
	tree := &Tree{Root: "/r", Files: []FileRecord{
		{Path: "a.txt", Digest: "d1", Size: 1},
		{Path: "b.txt", Digest: "d2", Size: 2},
	}}
	diff := ComputeDiff(tree, tree)
	if diff.HasChanges() {
		t.Errorf("expected no changes diffing a tree against itself, got %+v", diff)
	}
}

func TestComputeDiffAddedChangedRemoved(t *testing.T) {
	oldTree := &Tree{Files: []FileRecord{
		{Path: "keep.txt", Digest: "same", Size: 10},
		{Path: "edit.txt", Digest: "old-digest", Size: 20},
		{Path: "gone.txt", Digest: "d", Size: 5},
	}}
	newTree := &Tree{Files: []FileRecord{
		{Path: "keep.txt", Digest: "same", Size: 10},
		{Path: "edit.txt", Digest: "new-digest", Size: 99}, // size changed too, irrelevant
		{Path: "new.txt", Digest: "d2", Size: 7},
	}}

	diff := ComputeDiff(newTree, oldTree)
	if len(diff.Added) != 1 || diff.Added[0].Path != "new.txt" {
		t.Errorf("Added = %+v, want [new.txt]", diff.Added)
	}
	if len(diff.Changed) != 1 || diff.Changed[0].Path != "edit.txt" {
		t.Errorf("Changed = %+v, want [edit.txt]", diff.Changed)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].Path != "gone.txt" {
		t.Errorf("Removed = %+v, want [gone.txt]", diff.Removed)
	}
	if !diff.HasChanges() {
		t.Error("expected HasChanges true")
	}
}

func TestComputeDiffSizeOnlyChangeIsNotAChange(t *testing.T) {
	oldTree := &Tree{Files: []FileRecord{{Path: "a.txt", Digest: "same-digest", Size: 10}}}
	newTree := &Tree{Files: []FileRecord{{Path: "a.txt", Digest: "same-digest", Size: 999}}}

	diff := ComputeDiff(newTree, oldTree)
	if diff.HasChanges() {
		t.Errorf("size-only change without a digest change must not be reported as a change: %+v", diff)
	}
}

func TestDiffTotalSizeSumsAllPartitions(t *testing.T) {
	diff := &Diff{
		Added:   []FileRecord{{Size: 10}},
		Changed: []FileRecord{{Size: 20}},
		Removed: []FileRecord{{Size: 30}},
	}
	if got := diff.TotalSize(); got != 60 {
		t.Errorf("TotalSize() = %d, want 60", got)
	}
}

func TestDiffMessageRendersEmptyAndSections(t *testing.T) {
	empty := &Diff{}
	if got := empty.Message(); got != "No changes." {
		t.Errorf("empty diff message = %q, want %q", got, "No changes.")
	}

	diff := &Diff{Added: []FileRecord{{Path: "a.txt"}}, Removed: []FileRecord{{Path: "b.txt"}}}
	msg := diff.Message()
	if !contains(msg, "Added:") || !contains(msg, "a.txt") {
		t.Errorf("expected Added section with a.txt, got %q", msg)
	}
	if !contains(msg, "Removed:") || !contains(msg, "b.txt") {
		t.Errorf("expected Removed section with b.txt, got %q", msg)
	}
	if contains(msg, "Changed:") {
		t.Errorf("did not expect a Changed section, got %q", msg)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}