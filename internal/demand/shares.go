package demand

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// predictShares computes one model-implied share per product by aggregating
// simulated logit choice probabilities over the draws, market by market. It
// is a pure function of its inputs and is called once per contraction
// iteration plus once more after convergence to report fit.
func predictShares(delta []float64, data *ProductData, sigma *mat.Dense, draws *SimulationDraws, opts SolveOptions) ([]float64, error) {
	n := data.NumProducts()
	if len(delta) != n {
		return nil, &DimensionError{Context: "mean utilities", Expected: n, Found: len(delta)}
	}
	k2 := data.NonlinearDim()
	if k2 == 0 {
		return predictLogitShares(delta, data, opts.Contraction.MinShare)
	}
	if err := checkSigma(sigma, k2); err != nil {
		return nil, err
	}
	if d := draws.Dimension(); d != k2 {
		return nil, &DimensionError{Context: "draw dimension", Expected: k2, Found: d}
	}

	// Taste vectors sigma*node_r for all draws at once: row r of tastes is
	// (sigma*node_r)' = node_r'*sigma'.
	var tastes mat.Dense
	tastes.Mul(draws.nodes, sigma.T())

	shares := make([]float64, n)
	segments := data.Segments()
	segErrs := make([]error, len(segments))

	workers := opts.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for mi := range segments {
		mi := mi
		g.Go(func() error {
			if err := accumulateSegmentShares(shares, delta, segments[mi], data.x2, &tastes, draws.weights, opts.Contraction.MinShare); err != nil {
				segErrs[mi] = err
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Surface the earliest failing market so a concurrent run reports
		// the same error a sequential one would.
		for _, segErr := range segErrs {
			if segErr != nil {
				return nil, segErr
			}
		}
		return nil, err
	}
	return shares, nil
}

// accumulateSegmentShares fills dst[seg.Start:seg.End] with the weighted
// average of per-draw logit shares for one market. The "1" in the softmax
// denominator is the outside option's fixed utility of zero. Draws are
// accumulated in ascending order so the floating-point result is independent
// of market scheduling.
func accumulateSegmentShares(dst, delta []float64, seg MarketSegment, x2, tastes *mat.Dense, weights []float64, minShare float64) error {
	size := seg.Size()
	expu := make([]float64, size)
	out := dst[seg.Start:seg.End]
	_, k2 := tastes.Dims()

	for r := range weights {
		taste := tastes.RawRowView(r)
		denom := 1.0
		for idx := 0; idx < size; idx++ {
			j := seg.Start + idx
			u := delta[j]
			row := x2.RawRowView(j)
			for k := 0; k < k2; k++ {
				u += row[k] * taste[k]
			}
			e := math.Exp(u)
			if math.IsInf(e, 0) || math.IsNaN(e) {
				return &NumericalError{Context: "utility exponentiation"}
			}
			expu[idx] = e
			denom += e
		}
		w := weights[r]
		for idx := 0; idx < size; idx++ {
			out[idx] += w * expu[idx] / denom
		}
	}
	for _, s := range out {
		if s < minShare {
			return &NumericalError{Context: "predicted share underflow"}
		}
	}
	return nil
}

// predictLogitShares is the degenerate no-heterogeneity path: a closed-form
// multinomial logit per market, equivalent to a single draw with weight one.
func predictLogitShares(delta []float64, data *ProductData, minShare float64) ([]float64, error) {
	shares := make([]float64, len(delta))
	for _, seg := range data.segments {
		denom := 1.0
		for j := seg.Start; j < seg.End; j++ {
			e := math.Exp(delta[j])
			if math.IsInf(e, 0) || math.IsNaN(e) {
				return nil, &NumericalError{Context: "utility exponentiation"}
			}
			shares[j] = e
			denom += e
		}
		for j := seg.Start; j < seg.End; j++ {
			shares[j] /= denom
			if shares[j] < minShare {
				return nil, &NumericalError{Context: "predicted share underflow"}
			}
		}
	}
	return shares, nil
}

// checkSigma verifies sigma is square with the nonlinear dimension.
func checkSigma(sigma *mat.Dense, k2 int) error {
	if sigma == nil {
		return &DimensionError{Context: "sigma rows", Expected: k2, Found: 0}
	}
	r, c := sigma.Dims()
	if r != k2 {
		return &DimensionError{Context: "sigma rows", Expected: k2, Found: r}
	}
	if c != k2 {
		return &DimensionError{Context: "sigma columns", Expected: k2, Found: c}
	}
	return nil
}
