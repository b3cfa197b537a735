// Package containing the tree structures used by snptree: an index addressed
// node arena, leafset bookkeeping, bipartitions, outgroup rooting, and the
// newick codec.
package graphs

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	NoNode    = -1   // parent of the root / empty tree root
	NoLength  = -1.0 // branch length was never set
	NoSupport = -1.0 // node carries no support value
)

var (
	ErrUnknownTaxon   = errors.New("unknown taxon")
	ErrDuplicateTaxon = errors.New("duplicate taxon label")
	ErrEmptyTree      = errors.New("empty tree")
)

// Tree node stored in the arena of a Tree. Leaves carry their taxon in Name
// and have no children; Length is the branch to Parent.
type Node struct {
	Parent   int
	Children []int
	Name     string
	Length   float64
	Support  float64
}

func (n *Node) Tip() bool {
	return len(n.Children) == 0
}

func (n *Node) HasLength() bool {
	return n.Length >= 0
}

func (n *Node) HasSupport() bool {
	return n.Support >= 0
}

// Arena of nodes addressed by index. Exactly one node (Root) has no parent.
type Tree struct {
	Nodes []Node
	Root  int
}

func NewTree() *Tree {
	return &Tree{Root: NoNode}
}

// Appends a detached node and returns its index
func (t *Tree) NewNode(name string) int {
	t.Nodes = append(t.Nodes, Node{Parent: NoNode, Name: name, Length: NoLength, Support: NoSupport})
	return len(t.Nodes) - 1
}

// Attaches child under parent with the given branch length
func (t *Tree) AddChild(parent, child int, length float64) {
	if t.Nodes[child].Parent != NoNode {
		panic(fmt.Sprintf("node %d already has parent %d", child, t.Nodes[child].Parent))
	}
	t.Nodes[child].Parent = parent
	t.Nodes[child].Length = length
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, child)
}

// Removes child from its parent's child list (length is kept)
func (t *Tree) detach(child int) {
	p := t.Nodes[child].Parent
	if p == NoNode {
		return
	}
	t.Nodes[p].Children = slices.DeleteFunc(t.Nodes[p].Children, func(c int) bool { return c == child })
	t.Nodes[child].Parent = NoNode
}

// Node indices in pre-order (parents before children, children in order)
func (t *Tree) PreOrder() []int {
	if t.Root == NoNode {
		return nil
	}
	order := make([]int, 0, len(t.Nodes))
	stack := []int{t.Root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, cur)
		children := t.Nodes[cur].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return order
}

// Node indices in post-order (children before parents)
func (t *Tree) PostOrder() []int {
	pre := t.PreOrder()
	post := make([]int, 0, len(pre))
	// reversed pre-order with reversed child order is a valid post-order
	stack := make([]int, 0, len(pre))
	if t.Root != NoNode {
		stack = append(stack, t.Root)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		post = append(post, cur)
		stack = append(stack, t.Nodes[cur].Children...)
	}
	slices.Reverse(post)
	return post
}

// Leaf node indices in pre-order
func (t *Tree) Tips() []int {
	tips := make([]int, 0)
	for _, n := range t.PreOrder() {
		if t.Nodes[n].Tip() {
			tips = append(tips, n)
		}
	}
	return tips
}

// Leaf labels in pre-order
func (t *Tree) TipNames() []string {
	tips := t.Tips()
	names := make([]string, len(tips))
	for i, n := range tips {
		names[i] = t.Nodes[n].Name
	}
	return names
}

func (t *Tree) NLeaves() int {
	return len(t.Tips())
}

// Number of reachable nodes with at least one child
func (t *Tree) NInternal() int {
	count := 0
	for _, n := range t.PreOrder() {
		if !t.Nodes[n].Tip() {
			count++
		}
	}
	return count
}

// Returns the index of the leaf labelled name
func (t *Tree) FindTip(name string) (int, error) {
	for _, n := range t.Tips() {
		if t.Nodes[n].Name == name {
			return n, nil
		}
	}
	return NoNode, fmt.Errorf("%w %q", ErrUnknownTaxon, name)
}

func (t *Tree) Clone() *Tree {
	nodes := make([]Node, len(t.Nodes))
	for i, n := range t.Nodes {
		nodes[i] = n
		nodes[i].Children = slices.Clone(n.Children)
	}
	return &Tree{Nodes: nodes, Root: t.Root}
}

// Rebuilds the arena so it only holds nodes reachable from the root, in
// pre-order.
func (t *Tree) compact() {
	order := t.PreOrder()
	newIdx := make(map[int]int, len(order))
	for i, n := range order {
		newIdx[n] = i
	}
	nodes := make([]Node, len(order))
	for i, n := range order {
		old := t.Nodes[n]
		nodes[i] = old
		if old.Parent != NoNode {
			nodes[i].Parent = newIdx[old.Parent]
		}
		nodes[i].Children = make([]int, len(old.Children))
		for j, c := range old.Children {
			nodes[i].Children[j] = newIdx[c]
		}
	}
	t.Nodes = nodes
	if len(nodes) > 0 {
		t.Root = 0
	} else {
		t.Root = NoNode
	}
}

// Sum of branch lengths on the path between two leaves. Unknown lengths count
// as zero.
func (t *Tree) PathLength(a, b string) (float64, error) {
	u, err := t.FindTip(a)
	if err != nil {
		return 0, err
	}
	w, err := t.FindTip(b)
	if err != nil {
		return 0, err
	}
	distU := make(map[int]float64)
	d := 0.0
	for cur := u; cur != NoNode; cur = t.Nodes[cur].Parent {
		distU[cur] = d
		d += math.Max(t.Nodes[cur].Length, 0)
	}
	d = 0.0
	for cur := w; cur != NoNode; cur = t.Nodes[cur].Parent {
		if du, ok := distU[cur]; ok {
			return du + d, nil
		}
		d += math.Max(t.Nodes[cur].Length, 0)
	}
	panic("leaves do not share an ancestor")
}

// Renames leaves according to names (old -> new). Leaves missing from names
// are left untouched.
func (t *Tree) RenameTips(names map[string]string) {
	for _, n := range t.Tips() {
		if newName, ok := names[t.Nodes[n].Name]; ok {
			t.Nodes[n].Name = newName
		}
	}
}
