package prep

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/consensus"
	"github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/fileio"
	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"

	"github.com/evolbioinfo/gotree/io/nexus"
	"github.com/evolbioinfo/gotree/tree"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidFormat = errors.New("invalid format")
	ErrWritingFile   = errors.New("error writing file")
	ErrTypeOutRange  = errors.New("value out of range")

	plotLineColor  = color.RGBA{R: 37, G: 150, B: 190, A: 255}
	plotMarkerShap = draw.SquareGlyph{}
)

type Format int

const (
	Newick Format = iota
	Nexus

	plotH = 4 * vg.Inch
	plotW = 6 * vg.Inch

	maxTicks = 10

	// width of a distance written to a PHYLIP matrix (e.g. 0.1234567)
	phylipPrecision = 7
)

var ParseFormat = map[string]Format{
	"newick": Newick,
	"nexus":  Nexus,
}

func (f *Format) Set(s string) error {
	if format, ok := ParseFormat[s]; ok {
		*f = format
		return nil
	}
	return fmt.Errorf("\"%s\" is not a valid tree file format", s)
}

func (f Format) String() string {
	for s, fr := range ParseFormat {
		if fr == f {
			return s
		}
	}
	panic(fmt.Sprintf("format (%d) does not exist", f))
}

// Comma separated list of taxa given on the command line
type TaxonList []string

func (tl *TaxonList) Set(s string) error {
	taxa := make([]string, 0)
	for _, taxon := range strings.Split(s, ",") {
		if taxon = strings.TrimSpace(taxon); taxon != "" {
			taxa = append(taxa, taxon)
		}
	}
	if len(taxa) == 0 {
		return fmt.Errorf("\"%s\" does not name any taxa", s)
	}
	*tl = append(*tl, taxa...)
	return nil
}

func (tl TaxonList) String() string {
	return strings.Join(tl, ",")
}

// Run parameters shared by the bootstrap, tree, and consensus commands
type Config struct {
	Iterations        int      // bootstrap replicates
	MajorityThreshold float64  // splits must be in more than this fraction of trees
	RandomSeed        *uint64  // nil means seed from entropy
	OutgroupTaxa      []string // empty means leave trees as built
	StrictOutgroup    bool     // fail instead of rooting on the smallest enclosing clade
	NProcs            int
}

func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w, iterations must be at least 1, got %d", ErrTypeOutRange, c.Iterations)
	}
	if c.MajorityThreshold <= 0 || c.MajorityThreshold > 1 {
		return fmt.Errorf("%w, majority threshold must be in (0, 1], got %g", ErrTypeOutRange, c.MajorityThreshold)
	}
	if c.NProcs < 1 {
		return fmt.Errorf("%w, number of processes must be positive, got %d", ErrTypeOutRange, c.NProcs)
	}
	return nil
}

// Reads a population of trees from one or more files. Newick files may hold
// several trees each; nexus files are read through gotree. Returned names are
// "<file>:<n>" for newick and the nexus tree names otherwise.
func ReadTreeFiles(ctx context.Context, paths []string, format Format) ([]*gr.Tree, []string, error) {
	trees := make([]*gr.Tree, 0)
	names := make([]string, 0)
	for _, path := range paths {
		data, err := fileio.ReadFile(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading tree file %s: %w", path, err)
		}
		switch format {
		case Newick:
			fileTrees, err := gr.DecodeAll(string(data))
			if err != nil {
				return nil, nil, fmt.Errorf("%w, error parsing trees in %s: %s", ErrInvalidFormat, path, err.Error())
			}
			for i, t := range fileTrees {
				trees = append(trees, t)
				names = append(names, fmt.Sprintf("%s:%d", path, i+1))
			}
		case Nexus:
			fileTrees, fileNames, err := readNexus(data)
			if err != nil {
				return nil, nil, fmt.Errorf("%w, error reading nexus file %s: %s", ErrInvalidFormat, path, err.Error())
			}
			trees = append(trees, fileTrees...)
			names = append(names, fileNames...)
		default:
			return nil, nil, fmt.Errorf("%w, not a valid file format", ErrInvalidFile)
		}
	}
	if len(trees) == 0 {
		return nil, nil, fmt.Errorf("%w, no trees in %s", ErrInvalidFile, strings.Join(paths, ", "))
	}
	return trees, names, nil
}

func readNexus(data []byte) ([]*gr.Tree, []string, error) {
	flags := log.Flags()
	lout := log.Writer()
	log.SetOutput(io.Discard) // gotree can be noisy and lead to thousands of log messages
	defer func() {
		log.SetOutput(lout)
		log.SetFlags(flags)
	}()
	nex, err := nexus.NewParser(bytes.NewReader(data)).Parse()
	if err != nil {
		return nil, nil, err
	}
	trees := make([]*gr.Tree, 0)
	names := make([]string, 0)
	nex.IterateTrees(func(s string, t *tree.Tree) {
		trees = append(trees, gr.FromGotree(t))
		names = append(names, s)
	})
	return trees, names, nil
}

// Reads a distance matrix and the file naming its rows (plink .mdist and
// .mdist.id). The taxon is the second field of each id line, or the only one.
func ReadDistanceFiles(ctx context.Context, matrixFile, idFile string) (*DistanceMatrix, error) {
	idData, err := fileio.ReadFile(ctx, idFile)
	if err != nil {
		return nil, fmt.Errorf("error reading id file %s: %w", idFile, err)
	}
	ids := make([]string, 0)
	for _, fields := range readFields(idData) {
		if len(fields) > 1 {
			ids = append(ids, fields[1])
		} else {
			ids = append(ids, fields[0])
		}
	}
	matrixData, err := fileio.ReadFile(ctx, matrixFile)
	if err != nil {
		return nil, fmt.Errorf("error reading distance matrix %s: %w", matrixFile, err)
	}
	dm, err := LoadDistanceMatrix(readFields(matrixData), ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", matrixFile, err)
	}
	return dm, nil
}

// whitespace separated fields of every non-blank line
func readFields(data []byte) [][]string {
	rows := make([][]string, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), math.MaxInt32)
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			rows = append(rows, fields)
		}
	}
	return rows
}

// Writes dm as a PHYLIP square matrix with every taxon replaced by its
// synthetic id: the taxon count, then one row per taxon.
func WritePhylip(w io.Writer, dm *DistanceMatrix, ids *IDMap) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", dm.Len()); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	for i, taxon := range dm.Taxa {
		id, ok := ids.ToSynthetic(taxon)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownIdentifier, taxon)
		}
		row := make([]string, dm.Len()+1)
		row[0] = id
		for j := range dm.Len() {
			row[j+1] = strconv.FormatFloat(dm.At(i, j), 'f', phylipPrecision, 64)
		}
		if _, err := bw.WriteString(strings.Join(row, " ") + "\n"); err != nil {
			return fmt.Errorf("%w, %s", ErrWritingFile, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

// Write the retained splits of a consensus to w.
//
// There are four columns: "Split", "Count", "Support", "Mean Length"
func WriteSplitsCSV(res *consensus.Result, w io.Writer) (err error) {
	data := make([][]string, len(res.Splits)+1)
	data[0] = []string{"Split", "Count", "Support", "Mean Length"}
	for i, s := range res.Splits {
		length := ""
		if s.Length != gr.NoLength {
			length = strconv.FormatFloat(s.Length, 'f', -1, 64)
		}
		data[i+1] = []string{
			s.Split.String(res.Taxa),
			strconv.Itoa(s.Count),
			strconv.FormatFloat(s.Support, 'f', -1, 64),
			length,
		}
	}
	writer := csv.NewWriter(w)
	defer func() {
		writer.Flush()
		if err == nil {
			err = writer.Error()
		} else if writer.Error() != nil {
			log.Printf("error when flushing output csv, %s", writer.Error())
		}
	}()
	if err = writer.WriteAll(data); err != nil {
		err = fmt.Errorf("%w, %s", ErrWritingFile, err)
		return
	}
	return
}

// Plots retained split support (percent of trees) against split rank and saves
// it to <prefix>.png
func WriteSupportPlot(res *consensus.Result, prefix string) error {
	if len(res.Splits) == 0 {
		return fmt.Errorf("%w, consensus has no retained splits to plot", ErrWritingFile)
	}
	p := plot.New()
	p.X.Label.Text = "Clade Rank"
	p.Y.Label.Text = "Percent of Trees Supporting Clade"
	p.X.Min = 0
	p.X.Max = float64(len(res.Splits))
	p.X.Tick.Marker = plot.TickerFunc(func(_, max float64) []plot.Tick {
		step := 1
		if int(max) > maxTicks {
			step = int(math.Ceil(max / maxTicks))
		}
		ticks := make([]plot.Tick, 0, int(max)/step+2)
		for i := range int(max) + 1 {
			if i%step == 0 {
				ticks = append(ticks, plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", i)})
			} else {
				ticks = append(ticks, plot.Tick{Value: float64(i)})
			}
		}
		return ticks
	})
	p.Y.Min = 0
	p.Y.Max = 100
	pts := make(plotter.XYs, len(res.Splits))
	for i, s := range res.SplitsBySupport() {
		pts[i].X = float64(i + 1)
		pts[i].Y = 100 * s.Support
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = plotLineColor
	line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	points.Color = plotLineColor
	points.Shape = plotMarkerShap
	points.Radius = vg.Points(4)
	p.Add(line, points)
	return p.Save(plotW, plotH, fmt.Sprintf("%s.png", prefix))
}
