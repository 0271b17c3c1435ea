package extract

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/grid"
	"github.com/cleared-dev/recon/internal/model"
)

const (
	displayDateLayout = "01/02/2006"
	isoDateLayout     = "2006-01-02"

	// Largest serial a spreadsheet date can hold (9999-12-31).
	maxSerialDate = 2958465
)

// Day zero of the 1900 date system, shifted two days to absorb the
// phantom 1900-02-29.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// column is a header key lowered and trimmed for matching.
type column struct {
	key   string
	value grid.Cell
}

// lookup indexes a row by lowercased, trimmed key. When two keys collapse
// to the same lowered form the later value wins but the earlier position
// is kept.
type lookup []column

func newLookup(row model.KeyedRow) lookup {
	var l lookup
	pos := make(map[string]int, len(row))
	for _, f := range row {
		k := strings.ToLower(strings.TrimSpace(f.Key))
		if i, ok := pos[k]; ok {
			l[i].value = f.Value
			continue
		}
		pos[k] = len(l)
		l = append(l, column{key: k, value: f.Value})
	}
	return l
}

// resolve returns the value of the first column whose key contains any of
// the keywords.
func (l lookup) resolve(keywords []string) (grid.Cell, bool) {
	for _, c := range l {
		for _, kw := range keywords {
			if strings.Contains(c.key, kw) {
				return c.value, true
			}
		}
	}
	return grid.Cell{}, false
}

// NormalizeDate renders a date cell as MM/DD/YYYY. Numbers within the
// spreadsheet serial range are decoded as serial days; any other value is
// returned as text.
func NormalizeDate(c grid.Cell) string {
	switch c.Kind {
	case grid.Date:
		return c.Time.UTC().Format(displayDateLayout)
	case grid.Number:
		if c.Num >= 1 && c.Num <= maxSerialDate {
			return SerialToDate(c.Num).Format(displayDateLayout)
		}
	}
	return c.Text()
}

// SerialToDate converts a spreadsheet serial day number to a UTC date.
// The fractional time-of-day part is dropped.
func SerialToDate(serial float64) time.Time {
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial)))
}

// ParseAmount normalizes a direct amount cell. Text has $, commas and
// whitespace removed, and a parenthesized value is negative. Anything that
// does not start with a number is zero.
func ParseAmount(c grid.Cell) decimal.Decimal {
	switch c.Kind {
	case grid.Number:
		return fromFloat(c.Num)
	case grid.String:
		s := strings.Map(func(r rune) rune {
			if r == '$' || r == ',' || isSpace(r) {
				return -1
			}
			return r
		}, c.Str)
		if strings.Contains(s, "(") && strings.Contains(s, ")") {
			s = "-" + strings.NewReplacer("(", "", ")", "").Replace(s)
		}
		return parseLeading(s)
	}
	return decimal.Zero
}

// parseSide normalizes one side of a debit/credit pair. Unlike ParseAmount
// it keeps whitespace and ignores parentheses.
func parseSide(c grid.Cell) decimal.Decimal {
	if !c.Truthy() {
		return decimal.Zero
	}
	switch c.Kind {
	case grid.Number:
		return fromFloat(c.Num)
	case grid.String:
		return parseLeading(strings.NewReplacer("$", "", ",", "").Replace(c.Str))
	}
	return decimal.Zero
}

// parseLeading parses the longest numeric prefix of s after leading
// whitespace, returning zero when there is none.
func parseLeading(s string) decimal.Decimal {
	m := leadingNumber.FindString(strings.TrimLeftFunc(s, isSpace))
	if m == "" {
		return decimal.Zero
	}
	m = strings.TrimSuffix(m, ".")
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '\u00a0':
		return true
	}
	return false
}
