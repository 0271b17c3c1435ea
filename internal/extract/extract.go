// Package extract locates the header row of a statement grid and maps the
// rows below it into normalized transactions or survey fields.
package extract

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/recon/internal/grid"
	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/logging"
	"github.com/cleared-dev/recon/internal/model"
)

var (
	// ErrNoData is returned when no data rows exist below the header row.
	ErrNoData = errors.New("could not read any data rows")
	// ErrEmptySheet wraps ErrNoData when a whole sheet yields nothing.
	ErrEmptySheet = errors.New("empty sheet")
)

// DecodeError reports that the input could not be decoded as Format.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Engine runs extraction with a fixed configuration. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	Config   Config
	Registry *ingest.Registry
	Logger   *log.Logger
}

// NewEngine creates an Engine. A nil registry means the default decoders
// and a nil logger discards output.
func NewEngine(cfg Config, reg *ingest.Registry, logger *log.Logger) *Engine {
	if reg == nil {
		reg = ingest.DefaultRegistry()
	}
	return &Engine{
		Config:   cfg.withDefaults(),
		Registry: reg,
		Logger:   logging.OrDiscard(logger),
	}
}

// Extract decodes data as format and maps it according to mode.
func (e *Engine) Extract(data []byte, mode model.Mode, format string) (model.Result, error) {
	g, err := e.Registry.Decode(data, format)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownFormat) {
			return model.Result{}, err
		}
		return model.Result{}, &DecodeError{Format: format, Err: err}
	}
	return e.ExtractGrid(g, mode)
}

// ExtractGrid maps an already decoded grid according to mode.
func (e *Engine) ExtractGrid(g grid.Grid, mode model.Mode) (model.Result, error) {
	if mode != model.Reconciliation && mode != model.General {
		return model.Result{}, fmt.Errorf("%w: %q", model.ErrUnknownMode, mode)
	}

	header := LocateHeaderRow(g, e.Config)
	e.Logger.Debug("detected header row", "index", header, "grid_rows", len(g))

	rows := KeyRows(g, header)
	if len(rows) == 0 {
		return model.Result{}, fmt.Errorf("%w: %w", ErrEmptySheet, ErrNoData)
	}
	e.Logger.Debug("keyed data rows", "rows", len(rows), "columns", rows[0].Keys())

	if mode == model.General {
		return MapGeneral(rows)
	}

	res, dropped, err := mapReconciliation(rows, e.Config)
	if err != nil {
		return model.Result{}, err
	}
	for reason, n := range dropped {
		e.Logger.Debug("dropped rows", "rule", string(reason), "count", n)
	}
	e.Logger.Debug("mapped transactions", "transactions", len(res.Transactions), "rows", res.RowCount)
	return res, nil
}

// Extract runs a default Engine over data.
func Extract(data []byte, mode model.Mode, format string) (model.Result, error) {
	return NewEngine(DefaultConfig(), nil, nil).Extract(data, mode, format)
}
