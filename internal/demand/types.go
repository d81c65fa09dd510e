package demand

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Constants for default values
const (
	// DefaultTolerance is the convergence tolerance on the maximum absolute
	// damped update of the contraction mapping.
	DefaultTolerance = 1e-9

	// DefaultMaxIterations bounds the contraction iteration count.
	DefaultMaxIterations = 1000

	// DefaultDamping is the step multiplier applied to each log-share update.
	DefaultDamping = 1.0

	// DefaultMinShare is the floor below which a predicted share is treated
	// as a numerical failure (it would produce -Inf under the log).
	DefaultMinShare = 1e-16

	// DefaultMaxConcurrency bounds the predictor's market worker pool.
	DefaultMaxConcurrency = 4

	// WeightSumTolerance is the absolute slack allowed on the sum of
	// integration weights.
	WeightSumTolerance = 1e-8
)

// ContractionOptions configures the fixed-point solver.
type ContractionOptions struct {
	MaxIterations int     `json:"max_iterations"` // iteration budget; 0 fails immediately with zero iterations
	Tolerance     float64 `json:"tolerance"`      // convergence gap threshold
	Damping       float64 `json:"damping"`        // update multiplier, 1.0 is the undamped BLP contraction
	MinShare      float64 `json:"min_share"`      // predicted-share floor shared by predictor and solver
}

// DefaultContractionOptions returns the standard solver configuration.
func DefaultContractionOptions() ContractionOptions {
	return ContractionOptions{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Damping:       DefaultDamping,
		MinShare:      DefaultMinShare,
	}
}

// IsValid checks if the contraction options are usable. A zero iteration
// budget is legal; it makes any solve with a nonzero initial gap fail fast.
func (o ContractionOptions) IsValid() bool {
	return o.MaxIterations >= 0 && o.Tolerance > 0 && o.Damping > 0 && o.MinShare > 0 && o.MinShare < 1
}

// SolveOptions configures a full estimation call.
type SolveOptions struct {
	Contraction ContractionOptions `json:"contraction"`

	// WeightingMatrix overrides the conventional inverse Z'Z GMM weighting
	// when non-nil. It is used verbatim; positive-definiteness is the
	// caller's responsibility and is only detected by the downstream
	// Cholesky factorization.
	WeightingMatrix *mat.SymDense `json:"-"`

	// MaxConcurrency bounds the predictor's per-market worker pool.
	MaxConcurrency int `json:"max_concurrency"`
}

// DefaultSolveOptions returns the standard estimation configuration.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		Contraction:    DefaultContractionOptions(),
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

// IsValid checks if the solve options are usable.
func (o SolveOptions) IsValid() bool {
	return o.Contraction.IsValid() && o.MaxConcurrency > 0
}

// MarketSegment is a read-only view of one market's contiguous block in the
// product table: its label, the half-open index range [Start, End), and the
// precomputed outside-option share 1 - sum(in-market observed shares).
type MarketSegment struct {
	MarketID     string  `json:"market_id"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	OutsideShare float64 `json:"outside_share"`
}

// Size returns the number of products in the segment.
func (s MarketSegment) Size() int {
	return s.End - s.Start
}

// ContractionSummary reports solver diagnostics for a completed contraction.
type ContractionSummary struct {
	Iterations int     `json:"iterations"` // predictor evaluations performed
	MaxGap     float64 `json:"max_gap"`    // final maximum absolute damped update
}

// Results is the immutable bundle produced by a successful Solve call.
// Slices and matrices are owned by the bundle and must not be mutated.
type Results struct {
	RunID           string             `json:"run_id"`
	Delta           []float64          `json:"delta"`            // solved mean utilities
	Beta            []float64          `json:"beta"`             // linear taste parameters
	Xi              []float64          `json:"xi"`               // structural residual delta - X1*beta
	PredictedShares []float64          `json:"predicted_shares"` // model shares at the solution
	Objective       float64            `json:"objective"`        // xi'Z W Z'xi, non-negative
	WeightingMatrix *mat.SymDense      `json:"-"`                // the W actually used
	Contraction     ContractionSummary `json:"contraction"`
	OptionsUsed     SolveOptions       `json:"options_used"`
	Elapsed         time.Duration      `json:"elapsed"`
}

// ProductDataConfig carries the inputs for NewProductData. MarketIDs, Shares,
// and Linear are required. Nonlinear may be nil for a model without consumer
// heterogeneity. Instruments may be nil, in which case the linear
// characteristics serve as their own instruments.
type ProductDataConfig struct {
	MarketIDs   []string
	Shares      []float64
	Linear      *mat.Dense
	Nonlinear   *mat.Dense
	Instruments *mat.Dense
}

// ProductData is the immutable, market-contiguous product table. Construct it
// with NewProductData; all accessors return read-only views.
type ProductData struct {
	marketIDs []string
	shares    []float64
	x1        *mat.Dense // n x k1 linear characteristics
	x2        *mat.Dense // n x k2 nonlinear characteristics, nil when k2 == 0
	iv        *mat.Dense // n x m instruments
	segments  []MarketSegment
	segIndex  []int // product index -> segment index
}

// NumProducts returns the number of products in the table.
func (d *ProductData) NumProducts() int {
	return len(d.shares)
}

// NumMarkets returns the number of market segments.
func (d *ProductData) NumMarkets() int {
	return len(d.segments)
}

// LinearDim returns the number of linear characteristics k1.
func (d *ProductData) LinearDim() int {
	_, c := d.x1.Dims()
	return c
}

// NonlinearDim returns the number of nonlinear characteristics k2.
func (d *ProductData) NonlinearDim() int {
	if d.x2 == nil {
		return 0
	}
	_, c := d.x2.Dims()
	return c
}

// InstrumentDim returns the number of instruments m.
func (d *ProductData) InstrumentDim() int {
	_, c := d.iv.Dims()
	return c
}

// MarketIDs returns the per-product market labels in table order.
func (d *ProductData) MarketIDs() []string {
	return d.marketIDs
}

// Shares returns the observed shares in table order.
func (d *ProductData) Shares() []float64 {
	return d.shares
}

// Linear returns the linear characteristics matrix X1.
func (d *ProductData) Linear() *mat.Dense {
	return d.x1
}

// Nonlinear returns the nonlinear characteristics matrix X2, or nil when the
// model has no heterogeneity.
func (d *ProductData) Nonlinear() *mat.Dense {
	return d.x2
}

// Instruments returns the instrument matrix Z.
func (d *ProductData) Instruments() *mat.Dense {
	return d.iv
}

// Segments returns the market segments in table order.
func (d *ProductData) Segments() []MarketSegment {
	return d.segments
}

// SegmentOf returns the segment containing product i.
func (d *ProductData) SegmentOf(i int) MarketSegment {
	return d.segments[d.segIndex[i]]
}
