package mesh

import (
	"reflect"
	"testing"
)

func TestTreeRootHasNoParent(t *testing.T) {
	for _, root := range []int{0, 1, 2, 3} {
		if _, ok := Parent(root, root, 4); ok {
			t.Fatalf("root=%d: root should have no parent", root)
		}
	}
}

func TestTreeParentChildConsistency(t *testing.T) {
	const n = 7
	for root := 0; root < n; root++ {
		for rank := 0; rank < n; rank++ {
			if rank == root {
				continue
			}
			parent, ok := Parent(rank, root, n)
			if !ok {
				t.Fatalf("root=%d rank=%d: expected a parent", root, rank)
			}
			kids := Children(parent, root, n)
			found := false
			for _, k := range kids {
				if k == rank {
					found = true
				}
			}
			if !found {
				t.Fatalf("root=%d rank=%d: parent %d's children %v do not include rank", root, rank, parent, kids)
			}
		}
	}
}

func TestTreeEveryRankReachableFromRoot(t *testing.T) {
	const n = 9
	for root := 0; root < n; root++ {
		seen := map[int]bool{root: true}
		frontier := []int{root}
		for len(frontier) > 0 {
			next := []int{}
			for _, r := range frontier {
				for _, c := range Children(r, root, n) {
					if !seen[c] {
						seen[c] = true
						next = append(next, c)
					}
				}
			}
			frontier = next
		}
		if len(seen) != n {
			t.Fatalf("root=%d: reached %d of %d ranks", root, len(seen), n)
		}
	}
}

func TestTreeExample(t *testing.T) {
	// N=4, root=2: worked out by hand against its construction.
	got := Children(2, 2, 4)
	want := []int{3, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Children(2,2,4) = %v, want %v", got, want)
	}
	p, ok := Parent(1, 2, 4)
	if !ok || p != 3 {
		t.Fatalf("Parent(1,2,4) = (%d,%v), want (3,true)", p, ok)
	}
}
