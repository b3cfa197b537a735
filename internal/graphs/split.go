package graphs

import (
	"github.com/bits-and-blooms/bitset"
)

// Bipartition of the taxon set induced by one branch. Leaves holds the side
// that does not contain taxon 0, so equal splits have equal leaf sets no
// matter which side a tree reports.
type Split struct {
	Leaves *bitset.BitSet
}

// A split together with the branch that induced it
type BranchSplit struct {
	Split
	Length float64 // NoLength if no contributing branch had one
	Node   int     // node below the branch
}

// Canonicalises side (over all taxa) into a Split
func NewSplit(side *bitset.BitSet) Split {
	if side.Test(0) {
		return Split{Leaves: side.Complement()}
	}
	return Split{Leaves: side.Clone()}
}

// Hashable representation of the split
func (s Split) Key() string {
	return s.Leaves.String()
}

func (s Split) Size() int {
	return int(s.Leaves.Count())
}

func (s Split) NTaxa() int {
	return int(s.Leaves.Len())
}

// Splits separating fewer than two taxa on either side are implied by every
// tree
func (s Split) Trivial() bool {
	size := s.Size()
	return size < 2 || s.NTaxa()-size < 2
}

// Two splits are compatible when they can coexist in one tree. Canonical sides
// never hold taxon 0, so that reduces to nesting or disjointness.
func (s Split) Compatible(o Split) bool {
	return s.Leaves.IsSuperSet(o.Leaves) ||
		o.Leaves.IsSuperSet(s.Leaves) ||
		s.Leaves.IntersectionCardinality(o.Leaves) == 0
}

func (s Split) String(taxa []string) string {
	return bitsetAsString(s.Leaves, taxa) + "|" + bitsetAsString(s.Leaves.Complement(), taxa)
}

// Non-trivial splits of the tree, one per distinct bipartition. A bifurcating
// root induces the same split on both of its branches; those are reported
// once with the two lengths summed.
func (td *TreeData) Splits() []BranchSplit {
	splits := make([]BranchSplit, 0)
	seen := make(map[string]int)
	for _, cur := range td.PreOrder() {
		node := td.Nodes[cur]
		if cur == td.Root || node.Tip() {
			continue
		}
		split := NewSplit(td.leafsets[cur])
		if split.Trivial() {
			continue
		}
		if i, ok := seen[split.Key()]; ok {
			splits[i].Length = addLengths(splits[i].Length, node.Length)
			continue
		}
		seen[split.Key()] = len(splits)
		splits = append(splits, BranchSplit{Split: split, Length: node.Length, Node: cur})
	}
	return splits
}

func addLengths(a, b float64) float64 {
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	default:
		return a + b
	}
}
