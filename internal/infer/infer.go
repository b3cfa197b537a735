// Package infer builds neighbor-joining trees from distance matrices, one per
// bootstrap replicate.
package infer

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"
	pr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/prep"
)

type InferOptions struct {
	NProcs          int      // number of parallel processes
	Outgroup        []string // root every tree on these taxa when not empty
	StrictOutgroup  bool     // fail when the outgroup is not a clade
	AllowDegenerate bool     // accept matrices with fewer than 3 taxa
}

// Totals over all replicate trees
type Summary struct {
	NJStats
	Approximate int // trees rooted on a clade larger than the outgroup
}

// Builds and optionally roots the tree for a single matrix
func Infer(dm *pr.DistanceMatrix, opts InferOptions) (*gr.Tree, Summary, error) {
	for _, taxon := range opts.Outgroup {
		if _, ok := dm.Index(taxon); !ok {
			return nil, Summary{}, fmt.Errorf("rooting error: %w, outgroup taxon %q is not in the matrix", gr.ErrUnknownTaxon, taxon)
		}
	}
	tre, stats, err := BuildTree(dm, opts.AllowDegenerate)
	if err != nil {
		return nil, Summary{}, err
	}
	summary := Summary{NJStats: stats}
	if len(opts.Outgroup) == 0 {
		return tre, summary, nil
	}
	res, err := tre.RootWithOutgroup(opts.Outgroup, opts.StrictOutgroup)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("rooting error: %w", err)
	}
	if res.Approximate {
		summary.Approximate++
	}
	return tre, summary, nil
}

// Builds one tree per matrix using up to opts.NProcs goroutines. Trees are
// returned in the order of matrices; the first error cancels the remaining
// builds.
func BuildReplicates(ctx context.Context, matrices []*pr.DistanceMatrix, opts InferOptions) ([]*gr.Tree, Summary, error) {
	trees := make([]*gr.Tree, len(matrices))
	summaries := make([]Summary, len(matrices))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.NProcs, 1))
	for i, dm := range matrices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tre, summary, err := Infer(dm, opts)
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i+1, err)
			}
			trees[i], summaries[i] = tre, summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}
	total := Summary{}
	for _, s := range summaries {
		total.Add(s.NJStats)
		total.Approximate += s.Approximate
	}
	log.Printf("built %d trees", len(trees))
	if total.Clamped > 0 || total.ClampedDistances > 0 {
		log.Printf("WARNING: set %d negative branch lengths and %d negative distances to zero",
			total.Clamped, total.ClampedDistances)
	}
	if total.Approximate > 0 {
		log.Printf("WARNING: outgroup was not a clade in %d trees; rooted on the smallest clade containing it", total.Approximate)
	}
	return trees, total, nil
}
