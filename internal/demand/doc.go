// Package demand implements random-coefficients discrete-choice ("BLP") demand
// estimation: it inverts observed market shares into product mean utilities via
// the contraction mapping and estimates linear taste parameters by GMM.
//
// Given a product table (observed shares plus linear characteristics X1,
// nonlinear characteristics X2, and instruments Z) and a set of simulation
// draws describing consumer heterogeneity, the package recovers the mean
// utility vector delta that makes the simulated choice model reproduce the
// observed shares exactly, then solves the weighted instrumental-variables
// problem for the linear parameters beta and evaluates the GMM objective
// xi'Z W Z'xi on the structural residual xi = delta - X1*beta.
//
// # Core Components
//
// The estimation engine is composed of five pieces, leaves first:
//
//  1. Market partition: contiguous per-market segments with precomputed
//     outside-option shares, derived once at table construction.
//  2. Simulation draws: an immutable (nodes, weights) pair of Monte Carlo
//     integration points over the taste distribution.
//  3. Share predictor: per-market, per-draw logit aggregation of simulated
//     choice probabilities into model-implied shares.
//  4. Contraction solver: the damped fixed-point iteration
//     delta <- delta + damping*ln(observed/model) in log-share space.
//  5. Linear/GMM estimator: Cholesky-based two-stage least squares with an
//     inverse Z'Z or caller-supplied weighting matrix.
//
// # Architecture
//
//   - types.go: options, results, segment types, and shared defaults
//   - errors.go: typed domain errors with payloads
//   - market.go: product table construction and market partitioning
//   - draws.go: draw validation and seeded standard-normal synthesis
//   - shares.go: the share predictor and its parallel market loop
//   - contraction.go: the fixed-point solver
//   - gmm.go: weighting matrix and linear-parameter algebra
//   - problem.go: the Problem orchestrator tying everything together
//
// # Usage Example
//
//	data, err := demand.NewProductData(demand.ProductDataConfig{
//	    MarketIDs: marketIDs,
//	    Shares:    shares,
//	    Linear:    x1,
//	    Nonlinear: x2,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	draws, err := demand.NewStandardNormalDraws(1000, data.NonlinearDim(), 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	problem, err := demand.NewProblem(data, draws, demand.DefaultSolveOptions(), slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := problem.Solve(ctx, sigma)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(results.Beta, results.Objective)
//
// # Concurrency
//
// A Problem is safe for concurrent Solve and PredictShares calls: the product
// table, draws, and options are immutable after construction and every call
// owns its own delta buffer. Within one predictor call the per-market work is
// fanned out over a bounded worker pool; each worker writes a disjoint range
// of the output vector and accumulates draws in fixed ascending order, so
// results are bit-identical at every concurrency level.
package demand
