package demand

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"
)

// solveDelta inverts the observed shares into mean utilities by the BLP
// contraction: starting from the pure-logit guess ln(share/outside share),
// each iteration evaluates the share predictor once and applies the damped
// log-share update delta_j += damping*ln(observed_j/model_j). The update is
// a well-behaved fixed point in log-share space, converging faster and more
// robustly than direct share-space updates.
//
// Iterations are strictly sequential; termination is by tolerance on the
// maximum absolute damped update or by the iteration budget, never by wall
// clock. A zero budget fails before the first predictor call.
func solveDelta(ctx context.Context, data *ProductData, sigma *mat.Dense, draws *SimulationDraws, opts SolveOptions, logger *slog.Logger) ([]float64, ContractionSummary, error) {
	observed := data.Shares()
	delta := data.logitDelta()
	copts := opts.Contraction

	iterations := 0
	maxGap := math.Inf(1)
	progress := rate.Sometimes{First: 3, Interval: 5 * time.Second}

	for iterations < copts.MaxIterations {
		predicted, err := predictShares(delta, data, sigma, draws, opts)
		if err != nil {
			return nil, ContractionSummary{Iterations: iterations, MaxGap: maxGap}, err
		}

		maxGap = 0
		for j := range delta {
			if predicted[j] < copts.MinShare {
				return nil, ContractionSummary{Iterations: iterations, MaxGap: maxGap},
					&NumericalError{Context: "predicted share underflow"}
			}
			damped := copts.Damping * math.Log(observed[j]/predicted[j])
			delta[j] += damped
			if gap := math.Abs(damped); gap > maxGap {
				maxGap = gap
			}
		}
		iterations++

		progress.Do(func() {
			logger.DebugContext(ctx, "contraction progress",
				"iteration", iterations,
				"max_gap", maxGap,
			)
		})

		if maxGap < copts.Tolerance {
			return delta, ContractionSummary{Iterations: iterations, MaxGap: maxGap}, nil
		}
	}

	summary := ContractionSummary{Iterations: iterations, MaxGap: maxGap}
	return nil, summary, &ConvergenceError{Iterations: iterations, MaxGap: maxGap}
}
