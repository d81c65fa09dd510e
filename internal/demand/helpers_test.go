package demand

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"blpcli/internal/shared/testutil"
)

// testLogger returns a quiet logger so solver progress does not pollute test
// output.
func testLogger() *slog.Logger {
	return testutil.DiscardLogger()
}

// goldenLogitConfig is the fixed three-product, two-market scenario used by
// the golden tests: no heterogeneity, a constant plus one covariate, and
// instruments defaulting to the linear characteristics.
func goldenLogitConfig() ProductDataConfig {
	return ProductDataConfig{
		MarketIDs: []string{"m1", "m1", "m2"},
		Shares:    []float64{0.3, 0.2, 0.4},
		Linear: mat.NewDense(3, 2, []float64{
			1, 1.0,
			1, 2.0,
			1, 1.5,
		}),
	}
}

// buildSyntheticTable constructs a product table whose observed shares are
// exact model shares at a known delta, so solvers can be checked against the
// ground truth. It returns the table, the draws used to generate it, and the
// true delta.
func buildSyntheticTable(tb testing.TB, numMarkets, perMarket, k2, drawCount int, sigma *mat.Dense, seed uint64) (*ProductData, *SimulationDraws, []float64) {
	tb.Helper()

	n := numMarkets * perMarket
	rng := rand.New(rand.NewSource(seed))

	marketIDs := make([]string, n)
	trueDelta := make([]float64, n)
	placeholder := make([]float64, n)
	x1Data := make([]float64, n*2)
	var x2Data []float64
	if k2 > 0 {
		x2Data = make([]float64, n*k2)
	}
	for i := 0; i < n; i++ {
		marketIDs[i] = fmt.Sprintf("m%02d", i/perMarket)
		trueDelta[i] = -1 + 0.5*rng.NormFloat64()
		placeholder[i] = 0.5 / float64(perMarket)
		x1Data[2*i] = 1
		x1Data[2*i+1] = rng.NormFloat64()
		for k := 0; k < k2; k++ {
			x2Data[i*k2+k] = rng.NormFloat64()
		}
	}

	cfg := ProductDataConfig{
		MarketIDs: marketIDs,
		Shares:    placeholder,
		Linear:    mat.NewDense(n, 2, x1Data),
	}
	if k2 > 0 {
		cfg.Nonlinear = mat.NewDense(n, k2, x2Data)
	}
	provisional, err := NewProductData(cfg)
	require.NoError(tb, err)

	draws, err := NewStandardNormalDraws(drawCount, k2, seed+1)
	require.NoError(tb, err)

	observed, err := predictShares(trueDelta, provisional, sigma, draws, DefaultSolveOptions())
	require.NoError(tb, err)

	cfg.Shares = observed
	data, err := NewProductData(cfg)
	require.NoError(tb, err)

	return data, draws, trueDelta
}
