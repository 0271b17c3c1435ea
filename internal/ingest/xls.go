package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"

	"github.com/cleared-dev/recon/internal/grid"
)

// xlsCharset is used to decode BIFF8 byte strings.
const xlsCharset = "cp1252"

// XLSDecoder reads the first worksheet of a legacy BIFF workbook.
type XLSDecoder struct{}

// Format returns the decoder name.
func (d *XLSDecoder) Format() string { return FormatXLS }

// Decode reads the first worksheet into a grid. The xls reader panics on
// some malformed input; those panics come back as errors.
func (d *XLSDecoder) Decode(r io.Reader) (g grid.Grid, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading xls input: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			g, err = nil, fmt.Errorf("reading xls workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), xlsCharset)
	if err != nil {
		return nil, fmt.Errorf("reading xls workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("reading xls workbook: no worksheets")
	}

	return sheetGrid(int(sheet.MaxRow), func(i int) xlsRow {
		if row := sheetRow(sheet, i); row != nil {
			return row
		}
		return nil
	}), nil
}

// xlsRow is the part of *xls.Row the decoder reads.
type xlsRow interface {
	FirstCol() int
	LastCol() int
	Col(i int) string
}

// sheetGrid collects rows 0..maxRow. A nil row becomes an empty grid row.
func sheetGrid(maxRow int, rowAt func(int) xlsRow) grid.Grid {
	g := make(grid.Grid, 0, maxRow+1)
	for i := 0; i <= maxRow; i++ {
		row := rowAt(i)
		if row == nil {
			g = append(g, grid.Row{})
			continue
		}
		cells := make(grid.Row, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = xlsCell(row.Col(j))
		}
		g = append(g, cells)
	}
	return g
}

// sheetRow returns nil for rows the sheet has no record of.
func sheetRow(s *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(i)
}

// xlsSerialEpoch is day zero of the 1900 date system.
var xlsSerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// xlsCell turns the reader's text rendering back into a cell. Numbers
// stored with a custom number format come back as RFC3339 timestamps; they
// are converted back to serial day numbers, rounded to 1e-4 of a day since
// the rendering only keeps whole seconds.
func xlsCell(s string) grid.Cell {
	if s == "" {
		return grid.Empty()
	}
	trimmed := strings.TrimSpace(s)
	if plainNumber.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return grid.Num(f)
		}
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		days := t.Sub(xlsSerialEpoch).Hours() / 24
		return grid.Num(math.Round(days*1e4) / 1e4)
	}
	return grid.Text(s)
}
