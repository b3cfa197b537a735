package prep

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Largest |d(i,j) - d(j,i)| still treated as symmetric
const SymmetryTolerance = 1e-9

var ErrMalformedMatrix = errors.New("malformed distance matrix")

// Pairwise distances between an ordered list of taxa
type DistanceMatrix struct {
	Taxa []string
	d    *mat.Dense
}

// Builds a distance matrix from a full square matrix and validates it
func NewDistanceMatrix(taxa []string, rows [][]float64) (*DistanceMatrix, error) {
	n := len(taxa)
	if n == 0 {
		return nil, fmt.Errorf("%w, no taxa", ErrMalformedMatrix)
	}
	if len(rows) != n {
		return nil, fmt.Errorf("%w, %d taxa but %d rows", ErrMalformedMatrix, n, len(rows))
	}
	d := mat.NewDense(n, n, nil)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w, row %d has %d columns, expected %d", ErrMalformedMatrix, i+1, len(row), n)
		}
		d.SetRow(i, row)
	}
	dm := &DistanceMatrix{Taxa: taxa, d: d}
	if err := dm.Validate(); err != nil {
		return nil, err
	}
	return dm, nil
}

// Parses distance matrix cells paired with the ordered taxon list. Accepted
// shapes (n = len(ids)):
//   - full: n rows of n cells
//   - lower triangle with diagonal: row i has i+1 cells (trailing zero)
//   - lower triangle without diagonal and first row (plink .mdist triangle):
//     n-1 rows, row i has i+1 cells
func LoadDistanceMatrix(rows [][]string, ids []string) (*DistanceMatrix, error) {
	n := len(ids)
	if n == 0 {
		return nil, fmt.Errorf("%w, no sample ids", ErrMalformedMatrix)
	}
	values := make([][]float64, len(rows))
	for i, row := range rows {
		values[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w, non-numeric cell %q at row %d column %d", ErrMalformedMatrix, cell, i+1, j+1)
			}
			if invalidDistance(v) {
				return nil, fmt.Errorf("%w, invalid distance %q at row %d column %d", ErrMalformedMatrix, cell, i+1, j+1)
			}
			values[i][j] = v
		}
	}
	d := mat.NewDense(n, n, nil)
	switch {
	case isShape(values, n, func(int) int { return n }):
		for i, row := range values {
			d.SetRow(i, row)
		}
	case isShape(values, n, func(i int) int { return i + 1 }):
		for i, row := range values {
			for j, v := range row {
				d.Set(i, j, v)
				d.Set(j, i, v)
			}
		}
	case isShape(values, n-1, func(i int) int { return i + 1 }):
		for i, row := range values {
			for j, v := range row {
				d.Set(i+1, j, v)
				d.Set(j, i+1, v)
			}
		}
	default:
		return nil, fmt.Errorf("%w, %d sample ids do not match a full or lower triangular matrix with %d rows",
			ErrMalformedMatrix, n, len(values))
	}
	dm := &DistanceMatrix{Taxa: ids, d: d}
	if err := dm.Validate(); err != nil {
		return nil, err
	}
	return dm, nil
}

func invalidDistance(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

func isShape(values [][]float64, nRows int, rowLen func(int) int) bool {
	if len(values) != nRows {
		return false
	}
	for i, row := range values {
		if len(row) != rowLen(i) {
			return false
		}
	}
	return true
}

// Checks that the matrix is square over its taxa, symmetric, has a zero
// diagonal, holds no negative distances, and that taxa are unique.
func (dm *DistanceMatrix) Validate() error {
	n, c := dm.d.Dims()
	if n != c {
		return fmt.Errorf("%w, matrix is %dx%d", ErrMalformedMatrix, n, c)
	}
	if len(dm.Taxa) != n {
		return fmt.Errorf("%w, %d taxa for a %dx%d matrix", ErrMalformedMatrix, len(dm.Taxa), n, n)
	}
	seen := make(map[string]bool, n)
	for _, taxon := range dm.Taxa {
		if seen[taxon] {
			return fmt.Errorf("%w, duplicate taxon %q", ErrMalformedMatrix, taxon)
		}
		seen[taxon] = true
	}
	for i := range n {
		if dm.d.At(i, i) != 0 {
			return fmt.Errorf("%w, non-zero diagonal for %s (%g)", ErrMalformedMatrix, dm.Taxa[i], dm.d.At(i, i))
		}
		for j := range i {
			dij, dji := dm.d.At(i, j), dm.d.At(j, i)
			if invalidDistance(dij) || invalidDistance(dji) {
				return fmt.Errorf("%w, invalid distance between %s and %s", ErrMalformedMatrix, dm.Taxa[i], dm.Taxa[j])
			}
			if math.Abs(dij-dji) > SymmetryTolerance {
				return fmt.Errorf("%w, asymmetric distances between %s and %s (%g != %g)",
					ErrMalformedMatrix, dm.Taxa[i], dm.Taxa[j], dij, dji)
			}
		}
	}
	return nil
}

func (dm *DistanceMatrix) Len() int {
	return len(dm.Taxa)
}

func (dm *DistanceMatrix) At(i, j int) float64 {
	return dm.d.At(i, j)
}

// Position of taxon in the matrix
func (dm *DistanceMatrix) Index(taxon string) (int, bool) {
	for i, t := range dm.Taxa {
		if t == taxon {
			return i, true
		}
	}
	return -1, false
}

// Copy of the distances as a row-major slice of rows
func (dm *DistanceMatrix) Rows() [][]float64 {
	n := dm.Len()
	rows := make([][]float64, n)
	for i := range n {
		rows[i] = mat.Row(nil, i, dm.d)
	}
	return rows
}
