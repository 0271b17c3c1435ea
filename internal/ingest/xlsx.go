package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/recon/internal/grid"
)

// XLSXDecoder reads the first worksheet of an Office Open XML workbook.
// Values are read raw, so date cells arrive as serial day numbers.
type XLSXDecoder struct{}

// Format returns the decoder name.
func (d *XLSXDecoder) Format() string { return FormatXLSX }

// Decode reads the first worksheet into a grid.
func (d *XLSXDecoder) Decode(r io.Reader) (grid.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading xlsx workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("reading xlsx workbook: no worksheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading xlsx sheet %q: %w", sheet, err)
	}

	g := make(grid.Grid, len(rows))
	for i, rec := range rows {
		row := make(grid.Row, len(rec))
		for j, raw := range rec {
			if raw == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, fmt.Errorf("addressing cell %d,%d: %w", i, j, err)
			}
			typ, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("reading type of %s: %w", ref, err)
			}
			row[j] = xlsxCell(typ, raw)
		}
		g[i] = row
	}
	return g, nil
}

func xlsxCell(typ excelize.CellType, raw string) grid.Cell {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return grid.Text(raw)
	case excelize.CellTypeBool:
		if raw == "1" || raw == "TRUE" {
			return grid.Text("true")
		}
		return grid.Text("false")
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return grid.At(t.UTC())
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC); err == nil {
			return grid.At(t)
		}
		return grid.Text(raw)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return grid.Num(f)
	}
	return grid.Text(raw)
}
