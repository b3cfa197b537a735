package graphs

import (
	"github.com/evolbioinfo/gotree/tree"
)

// Copies a gotree tree (e.g., one read from a nexus file) into a Tree. The
// gotree root becomes the root; branch lengths and supports carry over.
func FromGotree(gt *tree.Tree) *Tree {
	t := NewTree()
	index := make(map[int]int, len(gt.Nodes()))
	gt.PreOrder(func(cur, prev *tree.Node, e *tree.Edge) (keep bool) {
		n := t.NewNode(cur.Name())
		index[cur.Id()] = n
		if prev == nil {
			t.Root = n
			return true
		}
		length := NoLength
		if e != nil && e.Length() != tree.NIL_LENGTH && e.Length() >= 0 {
			length = e.Length()
		}
		t.AddChild(index[prev.Id()], n, length)
		if e != nil && e.Support() != tree.NIL_SUPPORT && !cur.Tip() {
			t.Nodes[n].Support = e.Support()
		}
		return true
	})
	return t
}
