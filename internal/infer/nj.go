package infer

import (
	"errors"
	"fmt"

	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"
	pr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/prep"
)

var ErrInsufficientTaxa = errors.New("insufficient taxa")

// Counters for numeric corrections made while joining
type NJStats struct {
	Clamped          int // negative branch lengths set to zero
	ClampedDistances int // negative cluster distances set to zero
}

func (s *NJStats) Add(o NJStats) {
	s.Clamped += o.Clamped
	s.ClampedDistances += o.ClampedDistances
}

// Builds an unrooted binary tree from dm by neighbor-joining. The returned
// tree has one leaf per taxon and n-2 internal nodes; its root is the node
// created by the last join, holding three children. Among pairs with equal Q
// the first pair in (i, j), i < j, order over the active clusters is joined.
func NeighborJoining(dm *pr.DistanceMatrix) (*gr.Tree, NJStats, error) {
	stats := NJStats{}
	n := dm.Len()
	if n < 3 {
		return nil, stats, fmt.Errorf("%w, neighbor-joining needs at least 3 taxa, got %d", ErrInsufficientTaxa, n)
	}
	d := dm.Rows()
	tre := gr.NewTree()
	node := make([]int, n) // tree node currently held by each matrix slot
	for i, taxon := range dm.Taxa {
		node[i] = tre.NewNode(taxon)
	}
	active := make([]int, n) // matrix slots still in play, in slot order
	for i := range active {
		active[i] = i
	}
	sums := make([]float64, n)
	for len(active) > 2 {
		r := len(active)
		for _, i := range active {
			sums[i] = 0
			for _, k := range active {
				sums[i] += d[i][k]
			}
		}
		bi, bj := -1, -1
		var bestQ float64
		for a := range r {
			for b := a + 1; b < r; b++ {
				i, j := active[a], active[b]
				q := float64(r-2)*d[i][j] - sums[i] - sums[j]
				if bi == -1 || q < bestQ {
					bi, bj, bestQ = i, j, q
				}
			}
		}
		dij := d[bi][bj]
		li := dij/2 + (sums[bi]-sums[bj])/float64(2*(r-2))
		lj := dij - li
		if li < 0 {
			li = 0
			stats.Clamped++
		}
		if lj < 0 {
			lj = 0
			stats.Clamped++
		}
		u := tre.NewNode("")
		tre.AddChild(u, node[bi], li)
		tre.AddChild(u, node[bj], lj)
		for _, k := range active {
			if k == bi || k == bj {
				continue
			}
			duk := (d[bi][k] + d[bj][k] - dij) / 2
			if duk < 0 {
				duk = 0
				stats.ClampedDistances++
			}
			d[bi][k], d[k][bi] = duk, duk
		}
		d[bi][bi] = 0
		node[bi] = u
		tre.Root = u
		for a, k := range active {
			if k == bj {
				active = append(active[:a], active[a+1:]...)
				break
			}
		}
	}
	last, other := active[0], active[1]
	if node[last] != tre.Root {
		last, other = other, last
	}
	tre.AddChild(tre.Root, node[other], d[last][other])
	return tre, stats, nil
}

// Builds the tree for one distance matrix. With allowDegenerate set, one taxon
// gives a single leaf and two taxa a root with both leaves at half their
// distance; otherwise fewer than three taxa is an error.
func BuildTree(dm *pr.DistanceMatrix, allowDegenerate bool) (*gr.Tree, NJStats, error) {
	if n := dm.Len(); n < 3 && allowDegenerate {
		tre := gr.NewTree()
		if n == 1 {
			tre.Root = tre.NewNode(dm.Taxa[0])
			return tre, NJStats{}, nil
		}
		tre.Root = tre.NewNode("")
		tre.AddChild(tre.Root, tre.NewNode(dm.Taxa[0]), dm.At(0, 1)/2)
		tre.AddChild(tre.Root, tre.NewNode(dm.Taxa[1]), dm.At(0, 1)/2)
		return tre, NJStats{}, nil
	}
	return NeighborJoining(dm)
}
