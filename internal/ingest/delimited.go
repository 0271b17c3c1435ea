package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/recon/internal/grid"
)

// DelimitedDecoder reads CSV, TSV and pasted text. A zero Comma means the
// delimiter is sniffed from the start of the input.
type DelimitedDecoder struct {
	Name  string
	Comma rune
}

// candidate delimiters, in tie-break order.
var delimiters = []rune{',', '\t', ';', '|'}

// sniffWindow bounds how much input SniffDelimiter looks at.
const sniffWindow = 1024

// Layouts tried when a field looks like a date.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"2006-01-02T15:04:05",
}

var plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Format returns the decoder name.
func (d *DelimitedDecoder) Format() string { return d.Name }

// Decode reads every record into a grid, inferring numbers and dates.
func (d *DelimitedDecoder) Decode(r io.Reader) (grid.Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s input: %w", d.Name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	comma := d.Comma
	if comma == 0 {
		comma = SniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s input: %w", d.Name, err)
	}

	g := make(grid.Grid, 0, len(records))
	for _, rec := range records {
		row := make(grid.Row, len(rec))
		for i, field := range rec {
			row[i] = inferCell(field)
		}
		g = append(g, row)
	}
	return g, nil
}

// SniffDelimiter counts candidate delimiters outside double quotes in the
// first sniffWindow bytes and picks the most frequent one. Ties go to the
// earlier candidate; no match means comma.
func SniffDelimiter(data []byte) rune {
	if len(data) > sniffWindow {
		data = data[:sniffWindow]
	}
	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, r := range string(data) {
		switch r {
		case '"':
			quoted = !quoted
		case ',', '\t', ';', '|':
			if !quoted {
				counts[r]++
			}
		}
	}
	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func inferCell(field string) grid.Cell {
	if field == "" {
		return grid.Empty()
	}
	trimmed := strings.TrimSpace(field)
	if plainNumber.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return grid.Num(f)
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return grid.At(t)
		}
	}
	return grid.Text(field)
}
