package extract

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/recon/internal/grid"
	"github.com/cleared-dev/recon/internal/model"
)

// LocateHeaderRow returns the index of the first row among the first
// cfg.MaxHeaderScanRows that mentions at least cfg.MinHeaderMatches distinct
// header keywords. Empty rows are skipped but still use up the window.
// Returns 0 when no row qualifies.
func LocateHeaderRow(g grid.Grid, cfg Config) int {
	cfg = cfg.withDefaults()
	limit := min(len(g), cfg.MaxHeaderScanRows)
	for i := 0; i < limit; i++ {
		row := g[i]
		if row.IsEmpty() {
			continue
		}
		text := strings.ToLower(row.Join(" "))
		matches := 0
		for _, kw := range cfg.HeaderKeywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches >= cfg.MinHeaderMatches {
			return i
		}
	}
	return 0
}

const emptyHeader = "__EMPTY"

// KeyRows turns every row below headerRow into a KeyedRow labelled by the
// header row, keeping each label exactly as it appears. Blank labels become
// __EMPTY, __EMPTY_1, ...; repeated labels get a _1, _2, ... suffix. Absent cells are left out and rows with no
// values are skipped.
func KeyRows(g grid.Grid, headerRow int) []model.KeyedRow {
	if headerRow < 0 || headerRow >= len(g) {
		return nil
	}

	labels := newLabeler()
	header := g[headerRow]
	keys := make([]string, len(header))
	for i, c := range header {
		keys[i] = labels.next(c.Text())
	}

	var rows []model.KeyedRow
	for _, row := range g[headerRow+1:] {
		if row.IsBlank() {
			continue
		}
		var kr model.KeyedRow
		for i, c := range row {
			if c.IsAbsent() {
				continue
			}
			for i >= len(keys) {
				keys = append(keys, labels.next(""))
			}
			kr = append(kr, model.Field{Key: keys[i], Value: c})
		}
		rows = append(rows, kr)
	}
	return rows
}

type labeler struct {
	seen   map[string]int
	blanks int
}

func newLabeler() *labeler {
	return &labeler{seen: make(map[string]int)}
}

func (l *labeler) next(label string) string {
	if strings.TrimSpace(label) == "" {
		label = emptyHeader
		if l.blanks > 0 {
			label = fmt.Sprintf("%s_%d", emptyHeader, l.blanks)
		}
		l.blanks++
		l.seen[label]++
		return label
	}
	n := l.seen[label]
	l.seen[label] = n + 1
	if n == 0 {
		return label
	}
	for {
		candidate := fmt.Sprintf("%s_%d", label, n)
		if l.seen[candidate] == 0 {
			l.seen[candidate] = 1
			return candidate
		}
		n++
	}
}
