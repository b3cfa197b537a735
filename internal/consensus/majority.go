// Package consensus collapses a population of trees over one taxon set into a
// majority-rule consensus tree.
package consensus

import (
	"cmp"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"

	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"
)

var (
	ErrTaxonSetMismatch = errors.New("trees do not share the same taxon set")
	ErrNoTrees          = errors.New("no trees")
	ErrInvalidThreshold = errors.New("invalid majority threshold")
)

// Fraction of trees a split must exceed to be kept, in (0, 1]. A threshold of
// 1 keeps only splits found in every tree.
type Threshold float64

const DefaultThreshold Threshold = 0.5

func (t *Threshold) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w, \"%s\" is not a number", ErrInvalidThreshold, s)
	}
	if err := Threshold(v).validate(); err != nil {
		return err
	}
	*t = Threshold(v)
	return nil
}

func (t Threshold) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

func (t Threshold) validate() error {
	if !(t > 0 && t <= 1) {
		return fmt.Errorf("%w, %g is not in (0, 1]", ErrInvalidThreshold, float64(t))
	}
	return nil
}

// count out of n trees passes the threshold
func (t Threshold) passes(count, n int) bool {
	if t >= 1 {
		return count == n
	}
	return float64(count) > float64(t)*float64(n)
}

type Options struct {
	Threshold Threshold // DefaultThreshold when zero
	Outgroup  []string  // root the consensus tree on these taxa when not empty
}

// A retained split with its tally over the input trees
type SplitCount struct {
	gr.Split
	Count   int
	Support float64 // Count / number of trees
	Length  float64 // mean branch length over trees with one, otherwise NoLength
}

type Result struct {
	Tree         *gr.Tree
	Taxa         []string     // sorted taxon set, indexes split bits
	Splits       []SplitCount // inserted splits, largest first
	Trees        int          // number of input trees
	Incompatible int          // splits over the threshold that could not be inserted
	Approximate  bool         // outgroup was not a clade of the consensus tree
}

// Supports of the inserted splits, highest first
func (r *Result) SplitsBySupport() []SplitCount {
	sorted := slices.Clone(r.Splits)
	slices.SortStableFunc(sorted, func(a, b SplitCount) int {
		return cmp.Compare(b.Support, a.Support)
	})
	return sorted
}

func (r *Result) Supports() []float64 {
	supports := make([]float64, len(r.Splits))
	for i, s := range r.Splits {
		supports[i] = s.Support
	}
	return supports
}

// running totals for one split (or leaf edge)
type tally struct {
	split   gr.Split
	count   int
	lenSum  float64
	lenSeen int
}

func (tl *tally) add(length float64) {
	tl.count++
	if length >= 0 {
		tl.lenSum += length
		tl.lenSeen++
	}
}

func (tl *tally) meanLength() float64 {
	if tl.lenSeen == 0 {
		return gr.NoLength
	}
	return tl.lenSum / float64(tl.lenSeen)
}

// Builds the majority-rule consensus of trees. Every tree must have the same
// leaf labels, each exactly once. Non-trivial splits found in more than
// opts.Threshold of the trees are inserted largest first; a split that
// conflicts with one already inserted is skipped and counted. Taxa not
// separated by any kept split hang from the root, so a population with no
// majority splits gives a star tree. When opts.Outgroup is set the tree is
// then rooted on the outgroup, on the smallest clade containing it if the
// outgroup is not a clade of the consensus.
func Majority(trees []*gr.Tree, opts Options) (*Result, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if err := threshold.validate(); err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, ErrNoTrees
	}
	first, err := gr.MakeTreeData(trees[0])
	if err != nil {
		return nil, fmt.Errorf("%w, tree 1: %s", ErrTaxonSetMismatch, err.Error())
	}
	taxa := first.Taxa
	tallies := make(map[string]*tally)
	leafTallies := make([]tally, len(taxa))
	for i, tre := range trees {
		td := first
		if i > 0 {
			if td, err = gr.MakeTreeDataWithTaxa(tre, taxa); err != nil {
				return nil, fmt.Errorf("%w, tree %d: %s", ErrTaxonSetMismatch, i+1, err.Error())
			}
			if td.NLeaves != len(taxa) {
				return nil, fmt.Errorf("%w, tree %d has %d of %d taxa", ErrTaxonSetMismatch, i+1, td.NLeaves, len(taxa))
			}
		}
		for _, s := range td.Splits() {
			tl, ok := tallies[s.Key()]
			if !ok {
				tl = &tally{split: s.Split}
				tallies[s.Key()] = tl
			}
			tl.add(s.Length)
		}
		for _, tip := range td.Tips() {
			id, _ := td.TaxonID(td.Nodes[tip].Name)
			leafTallies[id].add(leafLength(td.Tree, tip))
		}
	}
	kept := make([]*tally, 0)
	for _, tl := range tallies {
		if threshold.passes(tl.count, len(trees)) {
			kept = append(kept, tl)
		}
	}
	slices.SortFunc(kept, func(a, b *tally) int {
		if c := cmp.Compare(b.split.Size(), a.split.Size()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.split.Key(), b.split.Key())
	})
	res := &Result{Taxa: taxa, Splits: make([]SplitCount, 0, len(kept)), Trees: len(trees)}
	for _, tl := range kept {
		if !compatibleWithAll(tl.split, res.Splits) {
			res.Incompatible++
			continue
		}
		res.Splits = append(res.Splits, SplitCount{
			Split:   tl.split,
			Count:   tl.count,
			Support: float64(tl.count) / float64(len(trees)),
			Length:  tl.meanLength(),
		})
	}
	res.Tree = assemble(taxa, res.Splits, leafTallies)
	if res.Incompatible > 0 {
		log.Printf("WARNING: %d majority splits were incompatible with larger splits and were discarded", res.Incompatible)
	}
	if len(opts.Outgroup) > 0 {
		rooted, err := res.Tree.RootWithOutgroup(opts.Outgroup, false)
		if err != nil {
			return nil, fmt.Errorf("rooting consensus: %w", err)
		}
		if res.Approximate = rooted.Approximate; res.Approximate {
			log.Printf("WARNING: outgroup is not a clade of the consensus tree; rooted on the smallest clade containing it (%d taxa)", rooted.CladeSize)
		}
	}
	return res, nil
}

// Length of the leaf edge of tip. Below a bifurcating root the two root
// branches form one edge.
func leafLength(tre *gr.Tree, tip int) float64 {
	length := tre.Nodes[tip].Length
	p := tre.Nodes[tip].Parent
	if p != tre.Root || len(tre.Nodes[p].Children) != 2 {
		return length
	}
	for _, sib := range tre.Nodes[p].Children {
		if sib != tip {
			if sl := tre.Nodes[sib].Length; sl >= 0 {
				return max(length, 0) + sl
			}
		}
	}
	return length
}

func compatibleWithAll(s gr.Split, inserted []SplitCount) bool {
	for _, o := range inserted {
		if !s.Compatible(o.Split) {
			return false
		}
	}
	return true
}

// Builds the consensus tree. splits must be pairwise compatible and sorted by
// decreasing size, so every split's parent precedes it.
func assemble(taxa []string, splits []SplitCount, leaves []tally) *gr.Tree {
	tre := gr.NewTree()
	tre.Root = tre.NewNode("")
	nodes := make([]int, len(splits))
	// smallest inserted split containing the set, else the root
	parentOf := func(contains func(SplitCount) bool, upTo int) int {
		for i := upTo - 1; i >= 0; i-- {
			if contains(splits[i]) {
				return nodes[i]
			}
		}
		return tre.Root
	}
	minTaxon := make(map[int]uint)
	for i, s := range splits {
		nodes[i] = tre.NewNode("")
		tre.Nodes[nodes[i]].Support = s.Support
		p := parentOf(func(o SplitCount) bool { return o.Leaves.IsSuperSet(s.Leaves) }, i)
		tre.AddChild(p, nodes[i], s.Length)
		minTaxon[nodes[i]], _ = s.Leaves.NextSet(0)
	}
	for id, name := range taxa {
		leaf := tre.NewNode(name)
		p := parentOf(func(o SplitCount) bool { return o.Leaves.Test(uint(id)) }, len(splits))
		tre.AddChild(p, leaf, leaves[id].meanLength())
		minTaxon[leaf] = uint(id)
	}
	for n := range tre.Nodes {
		slices.SortFunc(tre.Nodes[n].Children, func(a, b int) int {
			return cmp.Compare(minTaxon[a], minTaxon[b])
		})
	}
	return tre
}
