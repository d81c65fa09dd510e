package demand

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SimulationDraws is an immutable set of integration nodes over the consumer
// taste distribution: a draws matrix (one row per node) and a weights vector
// of matching length with all-positive entries summing to one. A draws set is
// constructed once and reused across contraction solves, e.g. across GMM
// objective evaluations at different candidate parameter values.
type SimulationDraws struct {
	nodes   *mat.Dense // count x dim, nil when dim == 0
	weights []float64
}

// NewSimulationDraws validates a caller-supplied (nodes, weights) pair and
// copies it into an immutable container. nodes may be nil to denote a
// zero-dimensional draw set (no heterogeneity); the weights then determine
// the node count.
func NewSimulationDraws(nodes *mat.Dense, weights []float64) (*SimulationDraws, error) {
	count := len(weights)
	if nodes != nil {
		r, _ := nodes.Dims()
		if count != r {
			return nil, &DimensionError{Context: "integration weights", Expected: r, Found: count}
		}
	}
	if count == 0 {
		return nil, &DimensionError{Context: "simulation draw count", Expected: 1, Found: 0}
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, &NonPositiveWeightError{Index: i, Weight: w}
		}
	}
	if slack := math.Abs(floats.Sum(weights) - 1); slack > WeightSumTolerance {
		return nil, &InvalidWeightsError{Slack: slack}
	}

	w := make([]float64, count)
	copy(w, weights)
	var n *mat.Dense
	if nodes != nil {
		if _, c := nodes.Dims(); c > 0 {
			n = mat.DenseCopyOf(nodes)
		}
	}
	return &SimulationDraws{nodes: n, weights: w}, nil
}

// NewStandardNormalDraws synthesizes count i.i.d. standard-normal draws of
// the given dimension with uniform weights 1/count. The generator is seeded
// and deterministic: identical seeds produce identical draws. A dimension of
// zero is legal and denotes a model without heterogeneity.
func NewStandardNormalDraws(count, dim int, seed uint64) (*SimulationDraws, error) {
	if count < 1 {
		return nil, &DimensionError{Context: "simulation draw count", Expected: 1, Found: count}
	}
	if dim < 0 {
		return nil, &DimensionError{Context: "draw dimension", Expected: 0, Found: dim}
	}

	weights := make([]float64, count)
	uniform := 1 / float64(count)
	for i := range weights {
		weights[i] = uniform
	}
	if dim == 0 {
		return &SimulationDraws{weights: weights}, nil
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	data := make([]float64, count*dim)
	for i := range data {
		data[i] = normal.Rand()
	}
	return &SimulationDraws{nodes: mat.NewDense(count, dim, data), weights: weights}, nil
}

// Count returns the number of draws.
func (s *SimulationDraws) Count() int {
	return len(s.weights)
}

// Dimension returns the number of columns in the draws matrix.
func (s *SimulationDraws) Dimension() int {
	if s.nodes == nil {
		return 0
	}
	_, c := s.nodes.Dims()
	return c
}

// Weights returns the integration weights as a read-only view.
func (s *SimulationDraws) Weights() []float64 {
	return s.weights
}

// Nodes returns the draws matrix as a read-only view, or nil when the
// dimension is zero.
func (s *SimulationDraws) Nodes() *mat.Dense {
	return s.nodes
}
