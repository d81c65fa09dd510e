package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"blpcli/internal/demand"
	"blpcli/internal/shared/testutil"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		stop     float64
		num      int
		expected []float64
	}{
		{
			name:     "three points",
			start:    0.2,
			stop:     1.4,
			num:      3,
			expected: []float64{0.2, 0.8, 1.4},
		},
		{
			name:     "single point",
			start:    0.5,
			stop:     2.0,
			num:      1,
			expected: []float64{0.5},
		},
		{
			name:     "zero points",
			start:    0,
			stop:     1,
			num:      0,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := linspace(tt.start, tt.stop, tt.num)
			require.Len(t, got, len(tt.expected))
			for i, want := range tt.expected {
				assert.InDelta(t, want, got[i], 1e-12)
			}
		})
	}
}

func TestGridCandidates(t *testing.T) {
	candidates := gridCandidates([]float64{0, 10}, []float64{1, 11}, 2)

	// Last dimension varies fastest.
	expected := [][]float64{
		{0, 10},
		{0, 11},
		{1, 10},
		{1, 11},
	}
	require.Len(t, candidates, 4)
	for i, want := range expected {
		assert.InDeltaSlice(t, want, candidates[i], 1e-12)
	}
}

func TestBetterCandidate(t *testing.T) {
	a := &searchCandidate{index: 0, objective: 1.0}
	b := &searchCandidate{index: 1, objective: 0.5}
	tie := &searchCandidate{index: 2, objective: 0.5}

	assert.True(t, betterCandidate(a, nil))
	assert.True(t, betterCandidate(b, a))
	assert.False(t, betterCandidate(a, b))
	// Equal objectives go to the earlier grid position.
	assert.False(t, betterCandidate(tie, b))
	assert.True(t, betterCandidate(b, tie))
}

func TestParseDiagonal(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		k2          int
		expectError bool
		expected    []float64
	}{
		{
			name:     "two entries",
			input:    "0.5, 1.5",
			k2:       2,
			expected: []float64{0.5, 1.5},
		},
		{
			name:        "empty",
			input:       "",
			k2:          1,
			expectError: true,
		},
		{
			name:        "count mismatch",
			input:       "0.5",
			k2:          2,
			expectError: true,
		},
		{
			name:        "bad number",
			input:       "0.5,x",
			k2:          2,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDiagonal(tt.input, tt.k2, "-min")

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStartingDiagonalDefaultsToOnes(t *testing.T) {
	start, err := startingDiagonal("", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, start)

	start, err = startingDiagonal("0.25,0.75", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, start)
}

func TestDiagonalSigma(t *testing.T) {
	sigma := diagonalSigma([]float64{0.5, 1.5})

	r, c := sigma.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.5, sigma.At(0, 0))
	assert.Equal(t, 1.5, sigma.At(1, 1))
	assert.Zero(t, sigma.At(0, 1))
	assert.Zero(t, sigma.At(1, 0))
}

// searchFixture builds an over-identified table whose shares come from the
// model itself at a known sigma, so the objective is minimized at that sigma.
func searchFixture(t *testing.T) (*demand.Problem, float64) {
	t.Helper()

	const trueSigma = 0.8
	beta := []float64{1.0, -1.5}

	markets := []string{
		"m1", "m1", "m1",
		"m2", "m2", "m2",
		"m3", "m3", "m3",
	}
	n := len(markets)
	x := []float64{0.2, 0.6, 1.0, 0.3, 0.7, 1.1, 0.4, 0.8, 1.2}

	x1 := mat.NewDense(n, 2, nil)
	x2 := mat.NewDense(n, 1, nil)
	zm := mat.NewDense(n, 3, nil)
	delta := make([]float64, n)
	placeholder := make([]float64, n)
	for i := 0; i < n; i++ {
		x1.Set(i, 0, 1)
		x1.Set(i, 1, x[i])
		x2.Set(i, 0, x[i])
		zm.Set(i, 0, 1)
		zm.Set(i, 1, x[i])
		zm.Set(i, 2, x[i]*x[i])
		// Zero xi: mean utility is exactly the linear index.
		delta[i] = beta[0] + beta[1]*x[i]
		placeholder[i] = 0.2
	}

	draws, err := demand.NewStandardNormalDraws(200, 1, 5)
	require.NoError(t, err)

	logger := testutil.DiscardLogger()
	opts := demand.DefaultSolveOptions()
	opts.MaxConcurrency = 2

	seed, err := demand.NewProductData(demand.ProductDataConfig{
		MarketIDs:   markets,
		Shares:      placeholder,
		Linear:      x1,
		Nonlinear:   x2,
		Instruments: zm,
	})
	require.NoError(t, err)

	gen, err := demand.NewProblem(seed, draws, opts, logger)
	require.NoError(t, err)

	sigma := mat.NewDense(1, 1, []float64{trueSigma})
	shares, err := gen.PredictShares(context.Background(), delta, sigma)
	require.NoError(t, err)

	data, err := demand.NewProductData(demand.ProductDataConfig{
		MarketIDs:   markets,
		Shares:      shares,
		Linear:      x1,
		Nonlinear:   x2,
		Instruments: zm,
	})
	require.NoError(t, err)

	problem, err := demand.NewProblem(data, draws, opts, logger)
	require.NoError(t, err)

	return problem, trueSigma
}

func TestSearchGridRecoversTrueSigma(t *testing.T) {
	problem, trueSigma := searchFixture(t)
	logger, handler := testutil.NewTestLogger(t)

	candidates := gridCandidates([]float64{0.2}, []float64{1.4}, 3)
	require.Len(t, candidates, 3)

	best, err := searchGrid(context.Background(), problem, candidates, 2, logger)
	require.NoError(t, err)

	assert.InDelta(t, trueSigma, best.diagonal[0], 1e-12)
	assert.Less(t, best.objective, 1e-10)
	require.NotNil(t, best.result)
	assert.Len(t, best.result.Beta, 2)

	assert.True(t, handler.ContainsMessage("found better candidate"))
	testutil.AssertNoErrors(t, handler)
}

func TestSearchGridEmpty(t *testing.T) {
	problem, _ := searchFixture(t)
	logger := testutil.DiscardLogger()

	_, err := searchGrid(context.Background(), problem, nil, 2, logger)
	assert.Error(t, err)
}

func TestSearchNelderMeadRecoversTrueSigma(t *testing.T) {
	problem, trueSigma := searchFixture(t)
	logger := testutil.DiscardLogger()

	best, err := searchNelderMead(context.Background(), problem, []float64{1.0}, 200, logger)
	require.NoError(t, err)

	assert.InDelta(t, trueSigma, best.diagonal[0], 0.05)
	assert.Less(t, best.objective, 1e-6)
	require.NotNil(t, best.result)
}

func TestSearchNelderMeadRejectsBrokenStart(t *testing.T) {
	problem, _ := searchFixture(t)
	logger := testutil.DiscardLogger()

	// Utilities of exp(1000) overflow inside the share predictor.
	_, err := searchNelderMead(context.Background(), problem, []float64{1e6}, 10, logger)
	assert.Error(t, err)
	assert.ErrorContains(t, err, "starting point")
}

func TestSearchGridAllCandidatesFail(t *testing.T) {
	problem, _ := searchFixture(t)
	logger := testutil.DiscardLogger()

	_, err := searchGrid(context.Background(), problem, [][]float64{{1e6}, {2e6}}, 2, logger)
	require.Error(t, err)
	assert.ErrorContains(t, err, "finite objective")
}
