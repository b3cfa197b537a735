package graphs

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrOutgroupNotMonophyletic = errors.New("outgroup is not monophyletic")
	ErrInvalidOutgroup         = errors.New("invalid outgroup")
)

// Outcome of re-rooting a tree
type RootResult struct {
	Approximate bool // outgroup was not a clade; rooted on the smallest clade containing it
	CladeSize   int  // number of taxa on the outgroup side of the root
}

// Re-roots the tree on the branch separating the outgroup taxa from the rest.
// When the outgroup is not a clade of the (unrooted) tree, the root is placed
// on the smallest clade containing every outgroup taxon, unless strict is set,
// in which case ErrOutgroupNotMonophyletic is returned. The branch that
// receives the root is split in two halves; no other length changes, except
// that a former root left with a single child is removed and its two branches
// are joined.
func (t *Tree) RootWithOutgroup(outgroup []string, strict bool) (RootResult, error) {
	if len(outgroup) == 0 {
		return RootResult{}, fmt.Errorf("%w, no outgroup taxa given", ErrInvalidOutgroup)
	}
	td, err := MakeTreeData(t)
	if err != nil {
		return RootResult{}, err
	}
	og, err := td.TaxaToBitset(outgroup)
	if err != nil {
		return RootResult{}, fmt.Errorf("%w, outgroup taxon is not a leaf of the tree: %w", ErrInvalidOutgroup, err)
	}
	if int(og.Count()) == td.NLeaves {
		return RootResult{}, fmt.Errorf("%w, outgroup contains every taxon in the tree", ErrInvalidOutgroup)
	}
	edge, size, exact := NoNode, td.NLeaves+1, false
	for _, cur := range t.PreOrder() {
		if cur == t.Root {
			continue
		}
		below := td.Leafset(cur)
		above := below.Complement()
		if below.Equal(og) || above.Equal(og) {
			edge, size, exact = cur, int(og.Count()), true
			break
		}
		if c := int(below.Count()); below.IsSuperSet(og) && c < size {
			edge, size = cur, c
		}
		if c := int(above.Count()); above.IsSuperSet(og) && c < size {
			edge, size = cur, c
		}
	}
	if edge == NoNode {
		panic("no branch separates a proper subset of the leaves")
	}
	if !exact && strict {
		return RootResult{}, fmt.Errorf("%w, smallest clade containing %v has %d taxa",
			ErrOutgroupNotMonophyletic, outgroup, size)
	}
	root := t.Nodes[t.Root]
	if !(len(root.Children) == 2 && slices.Contains(root.Children, edge)) {
		t.rerootOnEdge(edge)
	}
	return RootResult{Approximate: !exact, CladeSize: size}, nil
}

// Places a new root halfway along the branch above v
func (t *Tree) rerootOnEdge(v int) {
	p := t.Nodes[v].Parent
	if p == NoNode {
		panic("cannot reroot on the branch above the root")
	}
	oldRoot := t.Root
	half := NoLength
	if t.Nodes[v].HasLength() {
		half = t.Nodes[v].Length / 2
	}
	support := t.Nodes[v].Support
	t.detach(v)
	path := make([]int, 0)
	for cur := p; cur != NoNode; cur = t.Nodes[cur].Parent {
		path = append(path, cur)
	}
	lengths := make([]float64, len(path))
	supports := make([]float64, len(path))
	for i, x := range path {
		lengths[i], supports[i] = t.Nodes[x].Length, t.Nodes[x].Support
	}
	for i := range len(path) - 1 {
		t.detach(path[i])
	}
	r := t.NewNode("")
	t.Root = r
	t.AddChild(r, v, half)
	t.AddChild(r, p, half)
	t.Nodes[p].Support = support
	for i := range len(path) - 1 {
		t.AddChild(path[i], path[i+1], lengths[i])
		t.Nodes[path[i+1]].Support = supports[i]
	}
	if len(t.Nodes[oldRoot].Children) == 1 {
		t.splice(oldRoot)
	}
	t.compact()
}

// Removes a non-root node with one child, joining its two branches
func (t *Tree) splice(n int) {
	parent := t.Nodes[n].Parent
	child := t.Nodes[n].Children[0]
	length := addLengths(t.Nodes[n].Length, t.Nodes[child].Length)
	support := t.Nodes[child].Support
	if !t.Nodes[child].HasSupport() {
		support = t.Nodes[n].Support
	}
	i := slices.Index(t.Nodes[parent].Children, n)
	t.Nodes[parent].Children[i] = child
	t.Nodes[child].Parent = parent
	t.Nodes[child].Length = length
	t.Nodes[child].Support = support
	t.Nodes[n].Parent = NoNode
	t.Nodes[n].Children = nil
}
