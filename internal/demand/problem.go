package demand

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Problem ties a product table, a draws set, and solve options into a single
// estimation unit. All state is immutable after construction, so one Problem
// may serve concurrent Solve calls at different sigma values without locking.
type Problem struct {
	data   *ProductData
	draws  *SimulationDraws
	opts   SolveOptions
	logger *slog.Logger
}

// NewProblem assembles an estimation problem. Both the product table and the
// draws are required; the draw dimension must match the table's nonlinear
// dimension (zero-dimensional draws for a model without heterogeneity).
func NewProblem(data *ProductData, draws *SimulationDraws, opts SolveOptions, logger *slog.Logger) (*Problem, error) {
	if data == nil {
		return nil, &MissingComponentError{Component: "product data"}
	}
	if draws == nil {
		return nil, &MissingComponentError{Component: "simulation draws"}
	}
	if !opts.Contraction.IsValid() {
		return nil, fmt.Errorf("invalid contraction options: %+v", opts.Contraction)
	}
	if opts.MaxConcurrency < 1 {
		return nil, fmt.Errorf("invalid max concurrency: %d", opts.MaxConcurrency)
	}
	if k2, d := data.NonlinearDim(), draws.Dimension(); d != k2 {
		return nil, &DimensionError{Context: "draw dimension", Expected: k2, Found: d}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Problem{data: data, draws: draws, opts: opts, logger: logger}, nil
}

// Data returns the problem's product table.
func (p *Problem) Data() *ProductData {
	return p.data
}

// Draws returns the problem's simulation draws.
func (p *Problem) Draws() *SimulationDraws {
	return p.draws
}

// Options returns the problem's solve options.
func (p *Problem) Options() SolveOptions {
	return p.opts
}

// Solve runs the full estimation at the given nonlinear taste parameters:
// contraction to recover mean utilities, weighting-matrix resolution, the
// linear/GMM step, and a final share prediction at the solution for the
// reported fit. sigma must be square with the table's nonlinear dimension
// and is ignored for a model without heterogeneity.
//
// It either fully succeeds with a complete result bundle or fails with
// exactly one typed error for the first violated contract; nothing is
// retried internally.
func (p *Problem) Solve(ctx context.Context, sigma *mat.Dense) (*Results, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	logger.InfoContext(ctx, "starting demand estimation",
		"products", p.data.NumProducts(),
		"markets", p.data.NumMarkets(),
		"draws", p.draws.Count(),
		"nonlinear_dim", p.data.NonlinearDim(),
		"max_iterations", p.opts.Contraction.MaxIterations,
		"tolerance", p.opts.Contraction.Tolerance,
	)

	if k2 := p.data.NonlinearDim(); k2 > 0 {
		if err := checkSigma(sigma, k2); err != nil {
			logger.ErrorContext(ctx, "sigma validation failed", "error", err)
			return nil, err
		}
	}

	delta, summary, err := solveDelta(ctx, p.data, sigma, p.draws, p.opts, logger)
	if err != nil {
		logger.ErrorContext(ctx, "contraction failed",
			"error", err,
			"iterations", summary.Iterations,
			"max_gap", summary.MaxGap,
		)
		return nil, err
	}
	logger.InfoContext(ctx, "contraction converged",
		"iterations", summary.Iterations,
		"max_gap", summary.MaxGap,
	)

	w, err := computeWeighting(p.data, p.opts.WeightingMatrix)
	if err != nil {
		logger.ErrorContext(ctx, "weighting matrix construction failed", "error", err)
		return nil, err
	}
	beta, xi, objective, err := computeLinearParameters(delta, p.data, w)
	if err != nil {
		logger.ErrorContext(ctx, "linear parameter estimation failed", "error", err)
		return nil, err
	}

	predicted, err := predictShares(delta, p.data, sigma, p.draws, p.opts)
	if err != nil {
		logger.ErrorContext(ctx, "share prediction at solution failed", "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	logger.InfoContext(ctx, "demand estimation completed",
		"objective", objective,
		"iterations", summary.Iterations,
		"elapsed", elapsed,
	)

	return &Results{
		RunID:           runID,
		Delta:           delta,
		Beta:            beta,
		Xi:              xi,
		PredictedShares: predicted,
		Objective:       objective,
		WeightingMatrix: w,
		Contraction:     summary,
		OptionsUsed:     p.opts,
		Elapsed:         elapsed,
	}, nil
}

// PredictShares computes model-implied shares at an arbitrary delta and
// sigma, for out-of-band diagnostics such as residual inspection. It shares
// the predictor the solver uses and is pure over its arguments plus the
// problem's immutable table and draws.
func (p *Problem) PredictShares(ctx context.Context, delta []float64, sigma *mat.Dense) ([]float64, error) {
	p.logger.DebugContext(ctx, "predicting shares",
		"products", p.data.NumProducts(),
		"draws", p.draws.Count(),
	)
	return predictShares(delta, p.data, sigma, p.draws, p.opts)
}
