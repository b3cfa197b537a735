// Package bootstrap resamples marker lists with replacement.
package bootstrap

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyInput = errors.New("empty input")

// Seeded source of bootstrap replicates. A Sampler is not safe for
// concurrent use.
type Sampler struct {
	rng  *rand.Rand
	Seed uint64
}

func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed)), Seed: seed}
}

// Draws count replicates of items, each len(items) long, with replacement.
// Replicates are drawn one after another from the same source, so a sampler
// built from the same seed returns the same lists.
func (s *Sampler) Sample(items []string, count int) ([][]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w, nothing to resample", ErrEmptyInput)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w, %d replicates requested", ErrEmptyInput, count)
	}
	replicates := make([][]string, count)
	for i := range replicates {
		replicates[i] = make([]string, len(items))
		for j := range items {
			replicates[i][j] = items[s.rng.IntN(len(items))]
		}
	}
	return replicates, nil
}

// File name of replicate i (1-based)
func ReplicateFile(prefix string, i int) string {
	return fmt.Sprintf("%s_bootstrap_sample_%d.list", prefix, i)
}

// Writes each replicate to dir/<prefix>_bootstrap_sample_<i>.list. Markers go
// one per line with ':' separated parts (chromosome:position) written as space
// separated columns. Returns the written paths.
func WriteReplicates(dir, prefix string, replicates [][]string) ([]string, error) {
	paths := make([]string, len(replicates))
	for i, markers := range replicates {
		paths[i] = filepath.Join(dir, ReplicateFile(prefix, i+1))
		if err := writeList(paths[i], markers); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func writeList(path string, markers []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing %s: %w", path, cerr)
		}
	}()
	w := bufio.NewWriter(f)
	for _, m := range markers {
		if _, err = w.WriteString(strings.ReplaceAll(m, ":", " ") + "\n"); err != nil {
			return fmt.Errorf("error writing %s: %w", path, err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}
