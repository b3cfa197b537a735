package bootstrap

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"testing"
)

func TestSample(t *testing.T) {
	testCases := []struct {
		name        string
		items       []string
		count       int
		expectedErr error
	}{
		{name: "five markers", items: []string{"m1", "m2", "m3", "m4", "m5"}, count: 3},
		{name: "single marker", items: []string{"1:100"}, count: 4},
		{name: "one replicate", items: []string{"a", "b"}, count: 1},
		{name: "no items", items: []string{}, count: 3, expectedErr: ErrEmptyInput},
		{name: "no replicates", items: []string{"a"}, count: 0, expectedErr: ErrEmptyInput},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			lists, err := NewSampler(42).Sample(test.items, test.count)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			} else if err != nil {
				return
			}
			if len(lists) != test.count {
				t.Fatalf("got %d lists, expected %d", len(lists), test.count)
			}
			for i, list := range lists {
				if len(list) != len(test.items) {
					t.Errorf("list %d has %d items, expected %d", i, len(list), len(test.items))
				}
				for _, item := range list {
					if !slices.Contains(test.items, item) {
						t.Errorf("list %d contains %s which is not an input item", i, item)
					}
				}
			}
		})
	}
}

func TestSampleReproducible(t *testing.T) {
	items := []string{"m1", "m2", "m3", "m4", "m5"}
	sampler := NewSampler(2024)
	if sampler.Seed != 2024 {
		t.Errorf("seed = %d, expected 2024", sampler.Seed)
	}
	first, err := sampler.Sample(items, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewSampler(2024).Sample(items, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed gave different replicates, %v != %v", first, second)
	}
	other, err := NewSampler(2025).Sample(items, 3)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(first, other) {
		t.Errorf("different seeds gave identical replicates %v", first)
	}
}

func TestSampleUniform(t *testing.T) {
	items := make([]string, 50)
	for i := range items {
		items[i] = strconv.Itoa(i)
	}
	lists, err := NewSampler(7).Sample(items, 2000)
	if err != nil {
		t.Fatal(err)
	}
	counts := make(map[string]int)
	for _, list := range lists {
		for _, item := range list {
			counts[item]++
		}
	}
	expected := float64(len(lists)) // len(items) draws per list, 1/len(items) each
	for _, item := range items {
		if diff := math.Abs(float64(counts[item])-expected) / expected; diff > 0.1 {
			t.Errorf("%s drawn %d times, expected about %.0f", item, counts[item], expected)
		}
	}
}

func TestWriteReplicates(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteReplicates(dir, "run", [][]string{{"1:100", "2:300"}, {"rs7"}})
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]string{
		filepath.Join(dir, "run_bootstrap_sample_1.list"): "1 100\n2 300\n",
		filepath.Join(dir, "run_bootstrap_sample_2.list"): "rs7\n",
	}
	if len(paths) != len(expected) {
		t.Fatalf("wrote %v", paths)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != expected[path] {
			t.Errorf("%s contains %q, expected %q", path, data, expected[path])
		}
	}
}
