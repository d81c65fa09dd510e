package demand

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NewProductData validates the configuration and builds the immutable product
// table, deriving the market segments and outside shares in the process. The
// inputs are copied, so the caller may reuse its buffers afterwards.
//
// Construction fails on the first violated invariant: mismatched lengths or
// row counts, a non-positive or non-finite observed share, a market whose
// shares leave no outside share, or a market split across non-adjacent
// blocks.
func NewProductData(cfg ProductDataConfig) (*ProductData, error) {
	n := len(cfg.MarketIDs)
	if n == 0 {
		return nil, &MissingComponentError{Component: "market labels"}
	}
	if len(cfg.Shares) != n {
		return nil, &DimensionError{Context: "observed shares", Expected: n, Found: len(cfg.Shares)}
	}
	if cfg.Linear == nil {
		return nil, &MissingComponentError{Component: "linear characteristics"}
	}
	if r, _ := cfg.Linear.Dims(); r != n {
		return nil, &DimensionError{Context: "linear characteristic rows", Expected: n, Found: r}
	}
	if cfg.Nonlinear != nil {
		if r, _ := cfg.Nonlinear.Dims(); r != n {
			return nil, &DimensionError{Context: "nonlinear characteristic rows", Expected: n, Found: r}
		}
	}
	if cfg.Instruments != nil {
		if r, _ := cfg.Instruments.Dims(); r != n {
			return nil, &DimensionError{Context: "instrument rows", Expected: n, Found: r}
		}
	}

	if err := validateShares(cfg.Shares); err != nil {
		return nil, err
	}
	segments, segIndex, err := partitionMarkets(cfg.MarketIDs, cfg.Shares)
	if err != nil {
		return nil, err
	}

	marketIDs := make([]string, n)
	copy(marketIDs, cfg.MarketIDs)
	shares := make([]float64, n)
	copy(shares, cfg.Shares)

	var x2 *mat.Dense
	if cfg.Nonlinear != nil {
		if _, c := cfg.Nonlinear.Dims(); c > 0 {
			x2 = mat.DenseCopyOf(cfg.Nonlinear)
		}
	}
	iv := cfg.Instruments
	if iv == nil {
		// Exogenous linear characteristics instrument themselves.
		iv = cfg.Linear
	}

	return &ProductData{
		marketIDs: marketIDs,
		shares:    shares,
		x1:        mat.DenseCopyOf(cfg.Linear),
		x2:        x2,
		iv:        mat.DenseCopyOf(iv),
		segments:  segments,
		segIndex:  segIndex,
	}, nil
}

// validateShares enforces the all-positive, all-finite precondition on
// observed shares before any partitioning work.
func validateShares(shares []float64) error {
	for i, s := range shares {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return &NumericalError{Context: fmt.Sprintf("share validation: non-finite share at index %d", i)}
		}
		if s <= 0 {
			return &InvalidShareError{Index: i, Share: s}
		}
	}
	return nil
}

// partitionMarkets scans the market labels left to right, opening a new
// segment whenever the label changes. A label that reappears after its
// segment has closed means the table interleaves markets, which is rejected.
// Each segment's outside share is 1 minus the sum of its members' observed
// shares and must be strictly positive.
func partitionMarkets(labels []string, shares []float64) ([]MarketSegment, []int, error) {
	seen := make(map[string]struct{}, len(labels))
	segIndex := make([]int, len(labels))
	var segments []MarketSegment

	start := 0
	for i := 1; i <= len(labels); i++ {
		if i < len(labels) && labels[i] == labels[start] {
			continue
		}
		label := labels[start]
		if _, ok := seen[label]; ok {
			return nil, nil, &NonContiguousMarketError{MarketID: label}
		}
		seen[label] = struct{}{}

		sum := 0.0
		for j := start; j < i; j++ {
			sum += shares[j]
			segIndex[j] = len(segments)
		}
		outside := 1 - sum
		if outside <= 0 {
			return nil, nil, &OutsideShareError{MarketID: label, Share: outside}
		}
		segments = append(segments, MarketSegment{
			MarketID:     label,
			Start:        start,
			End:          i,
			OutsideShare: outside,
		})
		start = i
	}
	return segments, segIndex, nil
}

// logitDelta returns the closed-form pure-logit starting guess
// ln(share / outside share) for every product.
func (d *ProductData) logitDelta() []float64 {
	delta := make([]float64, len(d.shares))
	for _, seg := range d.segments {
		for j := seg.Start; j < seg.End; j++ {
			delta[j] = math.Log(d.shares[j] / seg.OutsideShare)
		}
	}
	return delta
}
