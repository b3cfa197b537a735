package prep

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// delimiters a marker table may use; anything else the detector suggests
// falls back to whitespace splitting
var markerDelimiters = "\t, ;|"

// Reads marker identifiers, one record per line. When records have more than
// one column (plink .bim) the identifier is the second field, otherwise the
// line itself. Blank lines are skipped.
func ReadMarkers(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading marker file: %w", err)
	}
	delim := detectDelimiter(data)
	markers := make([]string, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for i := 1; scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := splitRecord(line, delim)
		switch {
		case len(fields) == 1:
			markers = append(markers, fields[0])
		case fields[1] == "":
			return nil, fmt.Errorf("%w, empty marker id on line %d", ErrInvalidFormat, i)
		default:
			markers = append(markers, fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading marker file: %w", err)
	}
	if len(markers) == 0 {
		return nil, fmt.Errorf("%w, no markers", ErrInvalidFile)
	}
	return markers, nil
}

// Returns 0 when no usable delimiter is detected
func detectDelimiter(data []byte) rune {
	d := detector.New()
	candidates := d.DetectDelimiter(bytes.NewReader(data), '"')
	for _, c := range candidates {
		if len(c) == 1 && strings.Contains(markerDelimiters, c) {
			return rune(c[0])
		}
	}
	return 0
}

func splitRecord(line string, delim rune) []string {
	switch delim {
	case 0, ' ', '\t':
		return strings.Fields(line)
	default:
		fields := strings.Split(line, string(delim))
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		return fields
	}
}
