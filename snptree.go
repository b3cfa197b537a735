/*
snptree builds neighbor-joining trees from SNP distance matrices, resamples
marker sets for bootstrapping, and collapses bootstrap trees into a
majority-rule consensus tree with clade support.

usage: snptree [ flags ] <command> <args>...

commands:

	bootstrap	<markers> <outdir>		write resampled marker lists
	recode		<mdist> <mdist.id> <out> [trees]...	write PHYLIP matrix and id mapping; recode trees
	tree		<mdist> <mdist.id>		neighbor-joining tree
	restore		<mapping> <file>		replace synthetic ids in a file
	consensus	<trees>...			majority-rule consensus of tree files
	pipeline	<prefix>...			trees from <prefix>.mdist/.mdist.id, then consensus

flags:

	-f format
	  	tree file format [ newick | nexus ] (default "newick")
	-h	prints this message and exits
	-i int
	  	number of bootstrap replicates (default 100)
	-keep-unknown
	  	leave unmapped synthetic ids in place instead of failing (restore)
	-map file
	  	id mapping file; leaves of output trees are restored to original ids
	-n int
	  	number of parallel processes
	-o taxa
	  	comma separated outgroup taxa
	-p prefix
	  	output prefix (default "snptree")
	-plot
	  	write split support csv and plot (consensus, pipeline)
	-s seed
	  	random seed (bootstrap)
	-strict
	  	fail when the outgroup is not a clade
	-t threshold
	  	majority threshold in (0, 1] (default 0.5)
	-v	prints version number and exits

examples:

	snptree -i 100 -s 7 bootstrap run.bim lists/ 2> log.txt
	snptree -o cowA,cowB -map run.ids pipeline rep1 rep2 rep3 > consensus.nwk 2> log.txt
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/montanaflynn/stats"

	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/bootstrap"
	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/consensus"
	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/fileio"
	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"
	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/infer"
	pr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/prep"
)

const (
	Version    = "v0.3.0"
	ErrMessage = "snptree encountered an error ::"

	Bootstrap Command = iota
	Recode
	Tree
	Restore
	Consensus
	Pipeline
)

type Command int

var parseCommand = map[string]Command{
	"bootstrap": Bootstrap,
	"recode":    Recode,
	"tree":      Tree,
	"restore":   Restore,
	"consensus": Consensus,
	"pipeline":  Pipeline,
}

// minimum and maximum positional arguments of each command; -1 means no maximum
var commandArgs = map[Command][2]int{
	Bootstrap: {2, 2},
	Recode:    {3, -1},
	Tree:      {2, 2},
	Restore:   {2, 2},
	Consensus: {1, -1},
	Pipeline:  {1, -1},
}

type args struct {
	command     Command
	positional  []string
	config      pr.Config
	format      pr.Format // tree file format
	mapFile     string    // id mapping used to restore output trees
	prefix      string    // output prefix
	plot        bool      // write split csv and support plot
	keepUnknown bool      // lenient restore
}

func setNProcs(nprocs int) int {
	maxProcs := runtime.GOMAXPROCS(0)
	switch {
	case nprocs > maxProcs:
		log.Printf("%d is greater than available processes (%d); limit set to %d\n", nprocs, maxProcs, maxProcs)
		return maxProcs
	case nprocs <= 0:
		log.Printf("number of processes not set; defaulting to %d processes\n", maxProcs)
		return maxProcs
	default:
		return nprocs
	}
}

func parseArgs() args {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr,
			"usage: snptree [ flags ] <command> <args>...\n",
			"\n",
			"commands:\n\n",
			"  bootstrap\t<markers> <outdir>\t\twrite resampled marker lists\n",
			"  recode\t<mdist> <mdist.id> <out> [trees]...\twrite PHYLIP matrix and id mapping; recode trees\n",
			"  tree\t\t<mdist> <mdist.id>\t\tneighbor-joining tree\n",
			"  restore\t<mapping> <file>\t\treplace synthetic ids in a file\n",
			"  consensus\t<trees>...\t\t\tmajority-rule consensus of tree files\n",
			"  pipeline\t<prefix>...\t\t\ttrees from <prefix>.mdist/.mdist.id, then consensus\n",
			"\n",
			"flags:\n\n",
		)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr,
			"\n",
			"examples:\n\n",
			"  bootstrap command example:\n",
			"\tsnptree -i 100 -s 7 bootstrap run.bim lists/ 2> log.txt\n\n",
			"  pipeline command example:\n",
			"\tsnptree -o cowA,cowB -map run.ids pipeline rep1 rep2 rep3 > consensus.nwk 2> log.txt\n",
		)
	}
	format := pr.Newick
	flag.Var(&format, "f", "tree file `format` [ newick | nexus ] (default \"newick\")")
	threshold := consensus.DefaultThreshold
	flag.Var(&threshold, "t", "majority `threshold` in (0, 1] (default 0.5)")
	var outgroup pr.TaxonList
	flag.Var(&outgroup, "o", "comma separated outgroup `taxa`")
	iterations := flag.Int("i", 100, "number of bootstrap replicates")
	seed := flag.Uint64("s", 0, "random `seed` (bootstrap)")
	strict := flag.Bool("strict", false, "fail when the outgroup is not a clade")
	mapFile := flag.String("map", "", "id mapping `file`; leaves of output trees are restored to original ids")
	prefix := flag.String("p", "snptree", "output `prefix`")
	plot := flag.Bool("plot", false, "write split support csv and plot (consensus, pipeline)")
	keepUnknown := flag.Bool("keep-unknown", false, "leave unmapped synthetic ids in place instead of failing (restore)")
	help := flag.Bool("h", false, "prints this message and exits")
	ver := flag.Bool("v", false, "prints version number and exits")
	nprocs := flag.Int("n", 0, "number of parallel processes")
	flag.Parse()
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if *ver {
		fmt.Printf("snptree version %s\n", Version)
		os.Exit(0)
	}
	if flag.NArg() < 1 {
		parserError("a command is required")
	}
	cmd, ok := parseCommand[flag.Arg(0)]
	if !ok {
		parserError(fmt.Sprintf("\"%s\" is not a valid command", flag.Arg(0)))
	}
	positional := flag.Args()[1:]
	switch n := commandArgs[cmd]; {
	case n[0] == n[1] && len(positional) != n[0]:
		parserError(fmt.Sprintf("%s requires %d positional arguments", flag.Arg(0), n[0]))
	case len(positional) < n[0]:
		parserError(fmt.Sprintf("%s requires at least %d positional arguments", flag.Arg(0), n[0]))
	}
	config := pr.Config{
		Iterations:        *iterations,
		MajorityThreshold: float64(threshold),
		OutgroupTaxa:      outgroup,
		StrictOutgroup:    *strict,
		NProcs:            setNProcs(*nprocs),
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "s" {
			config.RandomSeed = seed
		}
	})
	if err := config.Validate(); err != nil {
		parserError(err.Error())
	}
	return args{
		command:     cmd,
		positional:  positional,
		config:      config,
		format:      format,
		mapFile:     *mapFile,
		prefix:      *prefix,
		plot:        *plot,
		keepUnknown: *keepUnknown,
	}
}

// prints message, usage, and exits (status code 1)
func parserError(message string) {
	fmt.Fprintln(os.Stderr, message)
	flag.Usage()
	os.Exit(1)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("snptree version %s", Version)
	args := parseArgs()
	ctx := context.Background()
	var err error
	switch args.command {
	case Bootstrap:
		log.Println("running bootstrap...")
		err = runBootstrap(ctx, args)
	case Recode:
		log.Println("running recode...")
		err = runRecode(ctx, args)
	case Tree:
		log.Println("running tree...")
		err = runTree(ctx, args)
	case Restore:
		log.Println("running restore...")
		err = runRestore(ctx, args)
	case Consensus:
		log.Println("running consensus...")
		err = runConsensus(ctx, args)
	case Pipeline:
		log.Println("running pipeline...")
		err = runPipeline(ctx, args)
	default:
		panic(fmt.Sprintf("invalid command (%d)", args.command))
	}
	if err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
	log.Println("done.")
}

func runBootstrap(ctx context.Context, args args) error {
	rdr, err := fileio.Open(ctx, args.positional[0])
	if err != nil {
		return err
	}
	defer rdr.Close()
	markers, err := pr.ReadMarkers(rdr)
	if err != nil {
		return err
	}
	seed := rand.Uint64()
	if args.config.RandomSeed != nil {
		seed = *args.config.RandomSeed
	}
	sampler := bootstrap.NewSampler(seed)
	log.Printf("resampling %d markers %d times with seed %d", len(markers), args.config.Iterations, sampler.Seed)
	replicates, err := sampler.Sample(markers, args.config.Iterations)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(args.positional[1], 0755); err != nil {
		return err
	}
	paths, err := bootstrap.WriteReplicates(args.positional[1], args.prefix, replicates)
	if err != nil {
		return err
	}
	log.Printf("wrote %d marker lists to %s", len(paths), args.positional[1])
	return nil
}

func runRecode(ctx context.Context, args args) error {
	dm, err := pr.ReadDistanceFiles(ctx, args.positional[0], args.positional[1])
	if err != nil {
		return err
	}
	ids, err := pr.EncodeIDs(dm.Taxa, pr.DefaultIDOptions)
	if err != nil {
		return err
	}
	out := args.positional[2]
	if err := writeTo(out+".phy", func(f *os.File) error { return pr.WritePhylip(f, dm, ids) }); err != nil {
		return err
	}
	if err := writeTo(out+".ids", func(f *os.File) error { return pr.WriteIDMap(f, ids) }); err != nil {
		return err
	}
	log.Printf("recoded %d samples; wrote %s.phy and %s.ids", ids.Len(), out, out)
	if len(args.positional) == 3 {
		return nil
	}
	trees, _, err := pr.ReadTreeFiles(ctx, args.positional[3:], args.format)
	if err != nil {
		return err
	}
	for i, tre := range trees {
		if err := ids.RecodeTree(tre); err != nil {
			return fmt.Errorf("tree %d: %w", i+1, err)
		}
	}
	if err := writeTo(out+".nwk", func(f *os.File) error {
		for _, tre := range trees {
			if _, err := fmt.Fprintln(f, tre.Newick()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	log.Printf("wrote %d recoded trees to %s.nwk", len(trees), out)
	return nil
}

func runTree(ctx context.Context, args args) error {
	dm, err := pr.ReadDistanceFiles(ctx, args.positional[0], args.positional[1])
	if err != nil {
		return err
	}
	tre, summary, err := infer.Infer(dm, inferOptions(args.config))
	if err != nil {
		return err
	}
	if summary.Clamped > 0 || summary.ClampedDistances > 0 {
		log.Printf("WARNING: set %d negative branch lengths and %d negative distances to zero",
			summary.Clamped, summary.ClampedDistances)
	}
	if summary.Approximate > 0 {
		log.Println("WARNING: outgroup is not a clade; rooted on the smallest clade containing it")
	}
	return printTrees(ctx, args, tre)
}

func runRestore(ctx context.Context, args args) error {
	ids, err := readIDMap(ctx, args.positional[0])
	if err != nil {
		return err
	}
	data, err := fileio.ReadFile(ctx, args.positional[1])
	if err != nil {
		return err
	}
	restored, err := ids.Restore(string(data), !args.keepUnknown)
	if err != nil {
		return err
	}
	fmt.Print(restored)
	return nil
}

func runConsensus(ctx context.Context, args args) error {
	trees, _, err := pr.ReadTreeFiles(ctx, args.positional, args.format)
	if err != nil {
		return err
	}
	log.Printf("read %d trees", len(trees))
	if len(args.config.OutgroupTaxa) > 0 {
		approximate := 0
		for i, tre := range trees {
			res, err := tre.RootWithOutgroup(args.config.OutgroupTaxa, args.config.StrictOutgroup)
			if err != nil {
				return fmt.Errorf("tree %d: %w", i+1, err)
			}
			if res.Approximate {
				approximate++
			}
		}
		if approximate > 0 {
			log.Printf("WARNING: outgroup was not a clade in %d trees; rooted on the smallest clade containing it", approximate)
		}
	}
	return writeConsensus(ctx, args, trees)
}

func runPipeline(ctx context.Context, args args) error {
	matrices := make([]*pr.DistanceMatrix, len(args.positional))
	for i, prefix := range args.positional {
		dm, err := pr.ReadDistanceFiles(ctx, prefix+".mdist", prefix+".mdist.id")
		if err != nil {
			return err
		}
		matrices[i] = dm
	}
	log.Printf("read %d distance matrices; building trees with %d processes", len(matrices), args.config.NProcs)
	trees, _, err := infer.BuildReplicates(ctx, matrices, inferOptions(args.config))
	if err != nil {
		return err
	}
	return writeConsensus(ctx, args, trees)
}

func writeConsensus(ctx context.Context, args args, trees []*gr.Tree) error {
	res, err := consensus.Majority(trees, consensus.Options{
		Threshold: consensus.Threshold(args.config.MajorityThreshold),
		Outgroup:  args.config.OutgroupTaxa,
	})
	if err != nil {
		return err
	}
	logSupport(res)
	if args.plot {
		if err := writeTo(args.prefix+"_splits.csv", func(f *os.File) error { return pr.WriteSplitsCSV(res, f) }); err != nil {
			return err
		}
		if len(res.Splits) > 0 {
			if err := pr.WriteSupportPlot(res, args.prefix+"_support"); err != nil {
				return err
			}
		}
	}
	return printTrees(ctx, args, res.Tree)
}

func logSupport(res *consensus.Result) {
	supports := res.Supports()
	if len(supports) == 0 {
		log.Printf("no split passed the majority threshold over %d trees; consensus is a star tree", res.Trees)
		return
	}
	mean, err := stats.Mean(supports)
	if err != nil {
		log.Printf("could not summarise support, %s", err)
		return
	}
	median, err := stats.Median(supports)
	if err != nil {
		log.Printf("could not summarise support, %s", err)
		return
	}
	minimum, _ := stats.Min(supports)
	log.Printf("%d clades from %d trees; support mean %.3f, median %.3f, min %.3f",
		len(supports), res.Trees, mean, median, minimum)
}

func inferOptions(config pr.Config) infer.InferOptions {
	return infer.InferOptions{
		NProcs:          config.NProcs,
		Outgroup:        config.OutgroupTaxa,
		StrictOutgroup:  config.StrictOutgroup,
		AllowDegenerate: true,
	}
}

// prints trees to stdout, restoring original ids when a mapping file is given
func printTrees(ctx context.Context, args args, trees ...*gr.Tree) error {
	var ids *pr.IDMap
	if args.mapFile != "" {
		var err error
		if ids, err = readIDMap(ctx, args.mapFile); err != nil {
			return err
		}
	}
	for _, tre := range trees {
		if ids != nil {
			if err := ids.RestoreTree(tre, true); err != nil {
				return err
			}
		}
		fmt.Println(tre.Newick())
	}
	return nil
}

func readIDMap(ctx context.Context, path string) (*pr.IDMap, error) {
	rdr, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return pr.ReadIDMap(rdr)
}

func writeTo(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
