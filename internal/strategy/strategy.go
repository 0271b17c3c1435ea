// Package strategy orders the ways a statement can be turned into a result:
// the deterministic grid engine first, a generative model second.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cleared-dev/recon/internal/extract"
	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/logging"
	"github.com/cleared-dev/recon/internal/model"
)

var (
	// ErrUnsupported is returned by a strategy that cannot read the input format.
	ErrUnsupported = errors.New("format not supported by strategy")
	// ErrNoStrategySucceeded is returned when every strategy failed or found nothing.
	ErrNoStrategySucceeded = errors.New("no extraction strategy produced a result")
	// errEmptyResult marks a strategy that ran cleanly but found nothing.
	errEmptyResult = errors.New("empty result")
)

// Input is one document to extract.
type Input struct {
	Data     []byte
	Format   string
	Mode     model.Mode
	Filename string
	// Pasted marks text typed or pasted by a user rather than uploaded.
	Pasted bool
}

// Strategy turns an Input into a Result.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) (model.Result, error)
}

// Deterministic runs the grid engine. It only handles tabular formats.
type Deterministic struct {
	Engine *extract.Engine
}

// NewDeterministic wraps engine.
func NewDeterministic(engine *extract.Engine) *Deterministic {
	return &Deterministic{Engine: engine}
}

// Name returns the strategy name.
func (d *Deterministic) Name() string { return "deterministic" }

// Extract decodes and maps the input synchronously; ctx is only checked
// before starting.
func (d *Deterministic) Extract(ctx context.Context, in Input) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	if !ingest.IsTabular(in.Format) {
		return model.Result{}, fmt.Errorf("%w: %s", ErrUnsupported, in.Format)
	}
	return d.Engine.Extract(in.Data, in.Mode, in.Format)
}

// Outcome is the result of a chain run.
type Outcome struct {
	RunID    string       `json:"run_id"`
	Strategy string       `json:"strategy"`
	Result   model.Result `json:"result"`
}

// Chain tries strategies in order until one returns a non-empty result.
type Chain struct {
	Strategies []Strategy
	Logger     *log.Logger
}

// NewChain builds a chain over strategies.
func NewChain(logger *log.Logger, strategies ...Strategy) *Chain {
	return &Chain{Strategies: strategies, Logger: logging.OrDiscard(logger)}
}

// Run extracts in with each strategy in turn. When none succeeds the
// returned Outcome still carries the last empty result, if any.
func (c *Chain) Run(ctx context.Context, in Input) (Outcome, error) {
	if in.Mode != model.Reconciliation && in.Mode != model.General {
		return Outcome{}, fmt.Errorf("%w: %q", model.ErrUnknownMode, in.Mode)
	}

	runID := uuid.NewString()
	logger := logging.OrDiscard(c.Logger).With("run_id", runID, "format", in.Format, "mode", in.Mode)

	// partial keeps the last empty but error-free result so callers can
	// still report how many rows were read.
	partial := Outcome{RunID: runID}
	errs := []error{ErrNoStrategySucceeded}
	for _, s := range c.Strategies {
		res, err := s.Extract(ctx, in)
		if err == nil && res.Empty() {
			partial = Outcome{RunID: runID, Strategy: s.Name(), Result: res}
			err = errEmptyResult
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			logger.Warn("strategy failed, trying next", "strategy", s.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Info("extraction succeeded", "strategy", s.Name(),
			"transactions", len(res.Transactions), "fields", len(res.Fields), "rows", res.RowCount)
		return Outcome{RunID: runID, Strategy: s.Name(), Result: res}, nil
	}
	return partial, errors.Join(errs...)
}

// NewDefaultChain returns the deterministic engine followed, when gen is
// non-nil, by the generative model.
func NewDefaultChain(logger *log.Logger, engine *extract.Engine, gen ContentGenerator, modelName string) *Chain {
	strategies := []Strategy{NewDeterministic(engine)}
	if gen != nil {
		strategies = append(strategies, NewGenerative(gen, modelName))
	}
	return NewChain(logger, strategies...)
}
