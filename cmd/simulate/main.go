package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"blpcli/internal/config"
	"blpcli/internal/dataset"
	"blpcli/internal/demand"
	"blpcli/internal/infrastructure"
	"blpcli/internal/validation"
	"blpcli/pkg/version"
)

func main() {
	markets := flag.Int("markets", 20, "number of markets to simulate")
	products := flag.Int("products", 5, "products per market")
	betaFlag := flag.String("beta", "1,-1.5", "true linear coefficients (first column is a constant)")
	sigmaFlag := flag.String("sigma", "0.5", "true sigma diagonal over the trailing characteristics (empty for pure logit)")
	xiSD := flag.Float64("xi-sd", 0.1, "standard deviation of the unobserved quality draw")
	seed := flag.Uint64("seed", 7, "simulation seed")
	drawCount := flag.Int("draws", 0, "integration draws for the share computation (defaults to config)")
	configFile := flag.String("config", "", "config file (defaults to the config.yaml lookup)")
	outPath := flag.String("out", "", "output CSV path (defaults to <data_dir>/simulated.csv)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersionString())
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to prepare directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.ContextWithTraceID(context.Background())
	logger.InfoContext(ctx, "Dataset simulation starting", "version", version.Version)

	beta, err := parseFloats(*betaFlag)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid -beta flag", "error", err)
		os.Exit(1)
	}
	sigmaDiag, err := parseFloats(*sigmaFlag)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid -sigma flag", "error", err)
		os.Exit(1)
	}

	spec := tableSpec{
		Markets:  *markets,
		Products: *products,
		Beta:     beta,
		Sigma:    sigmaDiag,
		XiSD:     *xiSD,
		Seed:     *seed,
	}
	if err := spec.validate(); err != nil {
		logger.ErrorContext(ctx, "Invalid simulation parameters", "error", err)
		os.Exit(1)
	}

	draws := *drawCount
	if draws <= 0 {
		draws = cfg.Draws.Count
	}

	logger.InfoContext(ctx, "Simulating product table",
		"markets", spec.Markets,
		"products_per_market", spec.Products,
		"beta", spec.Beta,
		"sigma", spec.Sigma,
		"xi_sd", spec.XiSD,
		"seed", spec.Seed,
		"draws", draws,
	)

	data, form, err := simulateTable(ctx, spec, draws, cfg.Estimation.MaxConcurrency, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Simulation failed", "error", err)
		os.Exit(1)
	}

	path := *outPath
	if path == "" {
		path = filepath.Join(cfg.Paths.DataDir, "simulated.csv")
	}
	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateOutputDirectory(filepath.Dir(path)); err != nil {
		logger.ErrorContext(ctx, "Output directory validation failed", "error", err)
		os.Exit(1)
	}
	if err := dataset.WriteCSV(path, data, form); err != nil {
		logger.ErrorContext(ctx, "Failed to write dataset", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Simulated table written",
		"path", path,
		"rows", data.NumProducts(),
		"linear_columns", form.Linear,
		"nonlinear_columns", form.Nonlinear,
		"instrument_columns", form.Instruments,
	)
}

// tableSpec carries the true data-generating parameters.
type tableSpec struct {
	Markets  int
	Products int
	Beta     []float64
	Sigma    []float64
	XiSD     float64
	Seed     uint64
}

func (s tableSpec) validate() error {
	if s.Markets < 1 {
		return fmt.Errorf("need at least one market, got %d", s.Markets)
	}
	if s.Products < 1 {
		return fmt.Errorf("need at least one product per market, got %d", s.Products)
	}
	if len(s.Beta) == 0 {
		return fmt.Errorf("-beta must name at least the constant coefficient")
	}
	if len(s.Sigma) > len(s.Beta) {
		return fmt.Errorf("sigma has %d entries but only %d characteristics exist", len(s.Sigma), len(s.Beta))
	}
	if s.XiSD < 0 {
		return fmt.Errorf("-xi-sd must be non-negative, got %g", s.XiSD)
	}
	return nil
}

// simulateTable draws characteristics and unobserved quality, computes the
// exact model shares at the true parameters, and returns the finished table
// with the formulation that describes its columns. The nonlinear
// characteristics are the trailing len(Sigma) linear columns; instruments are
// the linear columns plus the squares of the non-constant ones.
func simulateTable(ctx context.Context, spec tableSpec, drawCount, maxConcurrency int, logger *slog.Logger) (*demand.ProductData, dataset.Formulation, error) {
	k1 := len(spec.Beta)
	k2 := len(spec.Sigma)
	n := spec.Markets * spec.Products

	rng := rand.New(rand.NewSource(spec.Seed))
	xiDist := distuv.Normal{Mu: 0, Sigma: spec.XiSD, Src: rand.NewSource(spec.Seed + 1)}

	marketIDs := make([]string, n)
	x1 := mat.NewDense(n, k1, nil)
	iv := mat.NewDense(n, k1+(k1-1), nil)
	delta := make([]float64, n)
	placeholder := make([]float64, n)

	for i := 0; i < n; i++ {
		marketIDs[i] = fmt.Sprintf("m%03d", i/spec.Products+1)

		x1.Set(i, 0, 1)
		iv.Set(i, 0, 1)
		for j := 1; j < k1; j++ {
			v := 0.5 + 1.5*rng.Float64()
			x1.Set(i, j, v)
			iv.Set(i, j, v)
			iv.Set(i, k1+j-1, v*v)
		}

		xi := xiDist.Rand()
		delta[i] = xi
		for j := 0; j < k1; j++ {
			delta[i] += spec.Beta[j] * x1.At(i, j)
		}

		// Placeholder shares only have to pass table validation; the real
		// shares come from the forward predictor below.
		placeholder[i] = 1 / float64(2*spec.Products)
	}

	var x2 *mat.Dense
	var sigma *mat.Dense
	if k2 > 0 {
		x2 = mat.NewDense(n, k2, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < k2; j++ {
				x2.Set(i, j, x1.At(i, k1-k2+j))
			}
		}
		sigma = mat.NewDense(k2, k2, nil)
		for j, v := range spec.Sigma {
			sigma.Set(j, j, v)
		}
	}

	seedTable, err := demand.NewProductData(demand.ProductDataConfig{
		MarketIDs:   marketIDs,
		Shares:      placeholder,
		Linear:      x1,
		Nonlinear:   x2,
		Instruments: iv,
	})
	if err != nil {
		return nil, dataset.Formulation{}, fmt.Errorf("assembling simulation table: %w", err)
	}

	integration, err := demand.NewStandardNormalDraws(drawCount, k2, spec.Seed+2)
	if err != nil {
		return nil, dataset.Formulation{}, fmt.Errorf("building integration draws: %w", err)
	}

	opts := demand.DefaultSolveOptions()
	if maxConcurrency > 0 {
		opts.MaxConcurrency = maxConcurrency
	}
	problem, err := demand.NewProblem(seedTable, integration, opts, logger)
	if err != nil {
		return nil, dataset.Formulation{}, fmt.Errorf("assembling forward predictor: %w", err)
	}

	shares, err := problem.PredictShares(ctx, delta, sigma)
	if err != nil {
		return nil, dataset.Formulation{}, fmt.Errorf("computing model shares: %w", err)
	}

	data, err := demand.NewProductData(demand.ProductDataConfig{
		MarketIDs:   marketIDs,
		Shares:      shares,
		Linear:      x1,
		Nonlinear:   x2,
		Instruments: iv,
	})
	if err != nil {
		return nil, dataset.Formulation{}, fmt.Errorf("assembling final table: %w", err)
	}

	return data, tableFormulation(k1, k2), nil
}

// tableFormulation names the simulated columns: const, x1..x{k1-1}, with
// squared instruments x1_sq..; the trailing k2 characteristics carry the
// random tastes.
func tableFormulation(k1, k2 int) dataset.Formulation {
	linear := make([]string, k1)
	linear[0] = "const"
	for j := 1; j < k1; j++ {
		linear[j] = fmt.Sprintf("x%d", j)
	}

	instruments := make([]string, 0, k1+(k1-1))
	instruments = append(instruments, linear...)
	for j := 1; j < k1; j++ {
		instruments = append(instruments, fmt.Sprintf("x%d_sq", j))
	}

	return dataset.Formulation{
		Market:      "market",
		Share:       "share",
		Linear:      linear,
		Nonlinear:   linear[k1-k2:],
		Instruments: instruments,
	}
}

// parseFloats parses a comma-separated list, tolerating an empty flag.
func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", part, err)
		}
		values[i] = v
	}
	return values, nil
}

// loadConfig resolves the configuration, honoring an explicit -config flag.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}
