package prep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	gr "github.com/UtrechtUniversity/galaxy-tools-SNPdata/internal/graphs"
)

var (
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrDuplicateID       = errors.New("duplicate identifier")
	ErrIDSpace           = errors.New("synthetic identifier space exhausted")
)

// Layout of synthetic identifiers: Prefix followed by a Width digit counter,
// at most MaxLen characters in total
type IDOptions struct {
	Prefix string
	Width  int
	MaxLen int
}

// PHYLIP allows at most 10 characters per name
var DefaultIDOptions = IDOptions{Prefix: "S", Width: 8, MaxLen: 10}

// One-to-one mapping between original sample ids and fixed width synthetic ids
type IDMap struct {
	Original    []string
	Synthetic   []string
	toOriginal  map[string]string
	toSynthetic map[string]string
	token       *regexp.Regexp // prefix followed by the longest run of digits
}

// Assigns synthetic ids (prefix + zero padded 1-based counter) to ids in input
// order.
func EncodeIDs(ids []string, opts IDOptions) (*IDMap, error) {
	if opts.Prefix == "" || opts.Width < 1 {
		return nil, fmt.Errorf("%w, prefix %q with width %d", ErrIDSpace, opts.Prefix, opts.Width)
	}
	if opts.MaxLen > 0 && len(opts.Prefix)+opts.Width > opts.MaxLen {
		return nil, fmt.Errorf("%w, prefix %q and %d digits exceed %d characters",
			ErrIDSpace, opts.Prefix, opts.Width, opts.MaxLen)
	}
	if digits := len(fmt.Sprint(len(ids))); digits > opts.Width {
		return nil, fmt.Errorf("%w, %d ids do not fit in %d digits", ErrIDSpace, len(ids), opts.Width)
	}
	synthetic := make([]string, len(ids))
	for i := range ids {
		synthetic[i] = fmt.Sprintf("%s%0*d", opts.Prefix, opts.Width, i+1)
	}
	return newIDMap(ids, synthetic, opts.Prefix)
}

func newIDMap(original, synthetic []string, prefix string) (*IDMap, error) {
	m := &IDMap{
		Original:    original,
		Synthetic:   synthetic,
		toOriginal:  make(map[string]string, len(original)),
		toSynthetic: make(map[string]string, len(original)),
		token:       regexp.MustCompile(regexp.QuoteMeta(prefix) + `[0-9]+`),
	}
	for i, id := range original {
		if _, ok := m.toSynthetic[id]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateID, id)
		}
		if _, ok := m.toOriginal[synthetic[i]]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateID, synthetic[i])
		}
		m.toSynthetic[id] = synthetic[i]
		m.toOriginal[synthetic[i]] = id
	}
	return m, nil
}

func (m *IDMap) Len() int {
	return len(m.Original)
}

func (m *IDMap) ToSynthetic(id string) (string, bool) {
	s, ok := m.toSynthetic[id]
	return s, ok
}

func (m *IDMap) ToOriginal(id string) (string, bool) {
	s, ok := m.toOriginal[id]
	return s, ok
}

// Replaces every synthetic id in text with its original id. A token is the
// prefix and all digits that follow it, so S00000001 never matches inside
// S000000012. A token directly after an ASCII letter or digit is part of a
// longer word and is left alone; anything may follow it. With strict set, a
// synthetic-looking token with no mapping returns ErrUnknownIdentifier.
func (m *IDMap) Restore(text string, strict bool) (string, error) {
	var sb strings.Builder
	unknown := make([]string, 0)
	last := 0
	for _, loc := range m.token.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isAlphanumeric(text[start-1]) {
			continue
		}
		orig, ok := m.ToOriginal(text[start:end])
		if !ok {
			unknown = append(unknown, text[start:end])
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(orig)
		last = end
	}
	sb.WriteString(text[last:])
	if strict && len(unknown) > 0 {
		return "", fmt.Errorf("%w, no mapping for %s", ErrUnknownIdentifier, strings.Join(unknown, ", "))
	}
	return sb.String(), nil
}

func isAlphanumeric(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// Relabels the leaves of t with their original ids. With strict set, a leaf
// label that is not a known synthetic id returns ErrUnknownIdentifier (and
// the tree is left untouched).
func (m *IDMap) RestoreTree(t *gr.Tree, strict bool) error {
	if strict {
		for _, name := range t.TipNames() {
			if _, ok := m.ToOriginal(name); !ok {
				return fmt.Errorf("%w %q", ErrUnknownIdentifier, name)
			}
		}
	}
	t.RenameTips(m.toOriginal)
	return nil
}

// Relabels the leaves of t with their synthetic ids
func (m *IDMap) RecodeTree(t *gr.Tree) error {
	for _, name := range t.TipNames() {
		if _, ok := m.toSynthetic[name]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownIdentifier, name)
		}
	}
	t.RenameTips(m.toSynthetic)
	return nil
}

// Writes the mapping file: one "original synthetic" pair per line
func WriteIDMap(w io.Writer, m *IDMap) (err error) {
	writer := csv.NewWriter(w)
	writer.Comma = ' '
	defer func() {
		writer.Flush()
		if err == nil {
			err = writer.Error()
		}
	}()
	for i, id := range m.Original {
		if err = writer.Write([]string{id, m.Synthetic[i]}); err != nil {
			return fmt.Errorf("%w, %s", ErrWritingFile, err)
		}
	}
	return nil
}

// Reads a mapping file written by WriteIDMap. All synthetic ids must share
// the same non-numeric prefix.
func ReadIDMap(r io.Reader) (*IDMap, error) {
	reader := csv.NewReader(r)
	reader.Comma = ' '
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w, mapping file: %s", ErrInvalidFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w, empty mapping file", ErrInvalidFile)
	}
	original := make([]string, len(records))
	synthetic := make([]string, len(records))
	prefix := strings.TrimRight(records[0][1], "0123456789")
	if prefix == "" {
		return nil, fmt.Errorf("%w, synthetic id %q has no prefix", ErrInvalidFormat, records[0][1])
	}
	for i, rec := range records {
		original[i], synthetic[i] = rec[0], rec[1]
		if p := strings.TrimRight(rec[1], "0123456789"); p != prefix || p == rec[1] {
			return nil, fmt.Errorf("%w, synthetic id %q on line %d does not match prefix %q",
				ErrInvalidFormat, rec[1], i+1, prefix)
		}
	}
	return newIDMap(original, synthetic, prefix)
}
