package prep

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func fields(lines ...string) [][]string {
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = strings.Fields(line)
	}
	return rows
}

func TestLoadDistanceMatrix(t *testing.T) {
	expected := [][]float64{
		{0, 0.1, 0.2},
		{0.1, 0, 0.3},
		{0.2, 0.3, 0},
	}
	ids := []string{"s1", "s2", "s3"}
	testCases := []struct {
		name        string
		rows        [][]string
		ids         []string
		expectedErr error
	}{
		{name: "full", rows: fields("0 0.1 0.2", "0.1 0 0.3", "0.2 0.3 0"), ids: ids},
		{name: "lower with diagonal", rows: fields("0", "0.1 0", "0.2 0.3 0"), ids: ids},
		{name: "plink triangle", rows: fields("0.1", "0.2 0.3"), ids: ids},
		{name: "non-numeric", rows: fields("0 0.1 x", "0.1 0 0.3", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "negative", rows: fields("0 -0.1 0.2", "-0.1 0 0.3", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "nan", rows: fields("0", "NaN 0", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "asymmetric", rows: fields("0 0.1 0.2", "0.15 0 0.3", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "non-zero diagonal", rows: fields("0", "0.1 0.5", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "too few ids", rows: fields("0 0.1 0.2", "0.1 0 0.3", "0.2 0.3 0"), ids: ids[:2], expectedErr: ErrMalformedMatrix},
		{name: "ragged", rows: fields("0 0.1 0.2", "0.1 0", "0.2 0.3 0"), ids: ids, expectedErr: ErrMalformedMatrix},
		{name: "duplicate ids", rows: fields("0.1", "0.2 0.3"), ids: []string{"s1", "s2", "s1"}, expectedErr: ErrMalformedMatrix},
		{name: "no ids", rows: fields(), ids: []string{}, expectedErr: ErrMalformedMatrix},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			dm, err := LoadDistanceMatrix(test.rows, test.ids)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			} else if err != nil {
				return
			}
			if !reflect.DeepEqual(dm.Rows(), expected) {
				t.Errorf("matrix %v, expected %v", dm.Rows(), expected)
			}
			if i, ok := dm.Index("s3"); !ok || i != 2 {
				t.Errorf("index of s3 = %d, %t", i, ok)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		taxa        []string
		rows        [][]float64
		expectedErr error
	}{
		{name: "valid", taxa: []string{"A", "B"}, rows: [][]float64{{0, 1}, {1, 0}}},
		{name: "within tolerance", taxa: []string{"A", "B"}, rows: [][]float64{{0, 1}, {1 + 1e-12, 0}}},
		{name: "single taxon", taxa: []string{"A"}, rows: [][]float64{{0}}},
		{name: "asymmetric", taxa: []string{"A", "B"}, rows: [][]float64{{0, 1}, {2, 0}}, expectedErr: ErrMalformedMatrix},
		{name: "diagonal", taxa: []string{"A", "B"}, rows: [][]float64{{1, 1}, {1, 0}}, expectedErr: ErrMalformedMatrix},
		{name: "not square", taxa: []string{"A", "B"}, rows: [][]float64{{0, 1}, {1}}, expectedErr: ErrMalformedMatrix},
		{name: "taxa mismatch", taxa: []string{"A", "B", "C"}, rows: [][]float64{{0, 1}, {1, 0}}, expectedErr: ErrMalformedMatrix},
		{name: "duplicate taxa", taxa: []string{"A", "A"}, rows: [][]float64{{0, 1}, {1, 0}}, expectedErr: ErrMalformedMatrix},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			dm, err := NewDistanceMatrix(test.taxa, test.rows)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			} else if err != nil {
				return
			}
			if dm.Len() != len(test.taxa) {
				t.Errorf("len %d, expected %d", dm.Len(), len(test.taxa))
			}
		})
	}
}
