package graphs

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// Expanded tree struct containing preprocessed leafset data
type TreeData struct {
	*Tree
	Taxa           []string         // Leaf labels, indexed by taxon id
	NumLeavesBelow []uint           // Number of leaves below node
	NLeaves        int              // Number of leaves
	leafsets       []*bitset.BitSet // Leaves under each node
	taxonIDs       map[string]uint  // Leaf label to taxon id
}

// Preprocess tree data, indexing taxa by sorted leaf label. Returns an error if
// a leaf label is used more than once.
func MakeTreeData(tre *Tree) (*TreeData, error) {
	taxa := tre.TipNames()
	slices.Sort(taxa)
	for i := 1; i < len(taxa); i++ {
		if taxa[i] == taxa[i-1] {
			return nil, fmt.Errorf("%w %q", ErrDuplicateTaxon, taxa[i])
		}
	}
	return MakeTreeDataWithTaxa(tre, taxa)
}

// Preprocess tree data using a fixed taxon ordering (so that leafsets are
// comparable across trees). Every leaf must appear in taxa.
func MakeTreeDataWithTaxa(tre *Tree, taxa []string) (*TreeData, error) {
	if tre.Root == NoNode {
		return nil, ErrEmptyTree
	}
	ids := make(map[string]uint, len(taxa))
	for i, name := range taxa {
		ids[name] = uint(i)
	}
	leafsets := make([]*bitset.BitSet, len(tre.Nodes))
	below := make([]uint, len(tre.Nodes))
	nLeaves := 0
	for _, cur := range tre.PostOrder() {
		node := &tre.Nodes[cur]
		leafsets[cur] = bitset.New(uint(len(taxa)))
		if node.Tip() {
			id, ok := ids[node.Name]
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrUnknownTaxon, node.Name)
			}
			leafsets[cur].Set(id)
			below[cur] = 1
			nLeaves++
			continue
		}
		for _, c := range node.Children {
			leafsets[cur].InPlaceUnion(leafsets[c])
		}
		below[cur] = leafsets[cur].Count()
	}
	if below[tre.Root] != uint(nLeaves) {
		return nil, fmt.Errorf("%w, %d leaves but %d distinct taxa", ErrDuplicateTaxon, nLeaves, below[tre.Root])
	}
	return &TreeData{
		Tree:           tre,
		Taxa:           taxa,
		NumLeavesBelow: below,
		NLeaves:        nLeaves,
		leafsets:       leafsets,
		taxonIDs:       ids,
	}, nil
}

// Leaves under node n (do not modify)
func (td *TreeData) Leafset(n int) *bitset.BitSet {
	return td.leafsets[n]
}

func (td *TreeData) TaxonID(name string) (uint, bool) {
	id, ok := td.taxonIDs[name]
	return id, ok
}

// Bitset over taxon ids for the given labels
func (td *TreeData) TaxaToBitset(names []string) (*bitset.BitSet, error) {
	bs := bitset.New(uint(len(td.Taxa)))
	for _, name := range names {
		id, ok := td.taxonIDs[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTaxon, name)
		}
		bs.Set(id)
	}
	return bs, nil
}

// Returns leafset as string for printing/testing
func (td *TreeData) LeafsetAsString(n int) string {
	return bitsetAsString(td.leafsets[n], td.Taxa)
}

func bitsetAsString(bs *bitset.BitSet, taxa []string) string {
	result := "{"
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		result += taxa[i] + ","
	}
	if len(result) == 1 {
		return "{}"
	}
	return result[:len(result)-1] + "}"
}
