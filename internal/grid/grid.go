package grid

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of value held by a Cell.
type Kind int

const (
	Absent Kind = iota
	String
	Number
	Date
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "absent"
	}
}

// Cell is a single spreadsheet value.
type Cell struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Row is an ordered sequence of cells.
type Row []Cell

// Grid is a decoded worksheet: rows of cells, top to bottom.
type Grid []Row

// Empty returns an absent cell.
func Empty() Cell { return Cell{} }

// Text returns a string cell.
func Text(s string) Cell { return Cell{Kind: String, Str: s} }

// Num returns a numeric cell.
func Num(f float64) Cell { return Cell{Kind: Number, Num: f} }

// At returns a date cell.
func At(t time.Time) Cell { return Cell{Kind: Date, Time: t} }

// IsAbsent reports whether the cell holds no value.
func (c Cell) IsAbsent() bool { return c.Kind == Absent }

// Text coerces the cell to text the way a joined spreadsheet row renders it.
func (c Cell) Text() string {
	switch c.Kind {
	case String:
		return c.Str
	case Number:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case Date:
		return c.Time.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// Truthy reports whether the cell would count as a present value in a
// conditional: absent cells, empty strings and zero are false.
func (c Cell) Truthy() bool {
	switch c.Kind {
	case String:
		return c.Str != ""
	case Number:
		return c.Num != 0
	case Date:
		return true
	default:
		return false
	}
}

// IsEmpty reports whether the row has no cells at all.
func (r Row) IsEmpty() bool { return len(r) == 0 }

// IsBlank reports whether every cell in the row is absent.
func (r Row) IsBlank() bool {
	for _, c := range r {
		if !c.IsAbsent() {
			return false
		}
	}
	return true
}

// Join renders every cell as text separated by sep. Absent cells render
// as empty strings but still take a slot.
func (r Row) Join(sep string) string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.Text()
	}
	return strings.Join(parts, sep)
}

// FromStrings builds a grid of string cells, treating "" as absent.
// Handy for literal fixtures.
func FromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, rec := range rows {
		row := make(Row, len(rec))
		for j, v := range rec {
			if v != "" {
				row[j] = Text(v)
			}
		}
		g[i] = row
	}
	return g
}
