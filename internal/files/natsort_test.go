package files

import (
	"slices"
	"sort"
	"testing"
)

func TestNaturalLess(t *testing.T) {
	names := []string{"file10.txt", "File2.txt", "file1.txt", "b", "A", "file02.txt", "Élan", "z9", "z10"}
	sort.SliceStable(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	want := []string{"A", "b", "file1.txt", "File2.txt", "file02.txt", "file10.txt", "z9", "z10", "Élan"}
	if !slices.Equal(names, want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", names, want)
	}
}
