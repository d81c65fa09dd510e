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
	"time"

	"gonum.org/v1/gonum/mat"

	"blpcli/internal/config"
	"blpcli/internal/dataset"
	"blpcli/internal/demand"
	"blpcli/internal/exporter"
	"blpcli/internal/infrastructure"
	"blpcli/internal/validation"
	"blpcli/pkg/version"
)

func main() {
	dataPath := flag.String("data", "", "product table to load (.csv or .xlsx)")
	sheet := flag.String("sheet", "", "workbook sheet for XLSX input (defaults to the first sheet)")
	marketCol := flag.String("market", "market", "column with market labels")
	shareCol := flag.String("share", "share", "column with observed shares")
	linearCols := flag.String("linear", "", "comma-separated linear characteristic columns")
	nonlinearCols := flag.String("nonlinear", "", "comma-separated nonlinear characteristic columns")
	instrumentCols := flag.String("instruments", "", "comma-separated instrument columns (defaults to the linear columns)")
	sigmaFlag := flag.String("sigma", "", "nonlinear taste matrix: k2 diagonal entries or k2*k2 row-major, comma-separated")
	configFile := flag.String("config", "", "config file (defaults to the config.yaml lookup)")
	outPrefix := flag.String("out", "", "report name prefix (defaults to demand_<date>)")
	drawCount := flag.Int("draws", 0, "simulation draws per market (overrides config)")
	seed := flag.Uint64("seed", 0, "draw seed (overrides config)")
	tol := flag.Float64("tol", 0, "contraction tolerance (overrides config)")
	maxIter := flag.Int("max-iter", 0, "contraction iteration budget (overrides config)")
	damping := flag.Float64("damping", 0, "contraction damping factor (overrides config)")
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
	// Flags beat the file and the environment, but only when actually set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "draws":
			cfg.Draws.Count = *drawCount
		case "seed":
			cfg.Draws.Seed = *seed
		case "tol":
			cfg.Estimation.Tolerance = *tol
		case "max-iter":
			cfg.Estimation.MaxIterations = *maxIter
		case "damping":
			cfg.Estimation.Damping = *damping
		}
	})
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
	logger.InfoContext(ctx, "Demand estimation starting", "version", version.Version)

	if *dataPath == "" {
		logger.ErrorContext(ctx, "Missing required -data flag")
		os.Exit(1)
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateDatasetFile(*dataPath); err != nil {
		logger.ErrorContext(ctx, "Data file validation failed", "error", err)
		os.Exit(1)
	}

	form := dataset.Formulation{
		Market:      *marketCol,
		Share:       *shareCol,
		Linear:      dataset.ParseColumns(*linearCols),
		Nonlinear:   dataset.ParseColumns(*nonlinearCols),
		Instruments: dataset.ParseColumns(*instrumentCols),
	}

	logger.InfoContext(ctx, "Loading product table", "path", *dataPath)
	data, err := loadTable(*dataPath, *sheet, form)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load product table", "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Loaded product table",
		"products", data.NumProducts(),
		"markets", data.NumMarkets(),
		"nonlinear_dim", data.NonlinearDim(),
	)

	sigma, err := parseSigma(*sigmaFlag, data.NonlinearDim())
	if err != nil {
		logger.ErrorContext(ctx, "Invalid -sigma flag", "error", err)
		os.Exit(1)
	}

	draws, err := demand.NewStandardNormalDraws(cfg.Draws.Count, data.NonlinearDim(), cfg.Draws.Seed)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build simulation draws", "error", err)
		os.Exit(1)
	}

	problem, err := demand.NewProblem(data, draws, solveOptions(cfg.Estimation), logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to assemble estimation problem", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Solving demand model",
		"draws", cfg.Draws.Count,
		"seed", cfg.Draws.Seed,
	)
	res, err := problem.Solve(ctx, sigma)
	if err != nil {
		logger.ErrorContext(ctx, "Estimation failed", "error", err)
		os.Exit(1)
	}

	prefix := *outPrefix
	if prefix == "" {
		prefix = fmt.Sprintf("demand_%s", time.Now().Format("20060102"))
	}

	writer := exporter.NewCSVWriter(cfg.Paths.ReportsDir)
	results := exporter.NewResultsExporter(writer, logger)
	if err := results.Export(ctx, data, res, prefix); err != nil {
		logger.ErrorContext(ctx, "Failed to write reports", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Estimation completed",
		"run_id", res.RunID,
		"objective", res.Objective,
		"iterations", res.Contraction.Iterations,
		"beta", res.Beta,
		"reports_prefix", prefix,
	)
}

// loadConfig resolves the configuration, honoring an explicit -config flag.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// loadTable dispatches on the dataset extension.
func loadTable(path, sheet string, form dataset.Formulation) (*demand.ProductData, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return dataset.LoadXLSX(path, sheet, form)
	default:
		return dataset.LoadCSV(path, form)
	}
}

// parseSigma turns the -sigma flag into the square taste matrix the solver
// expects. k2 entries fill the diagonal; k2*k2 entries fill the whole matrix
// row-major. An empty flag is only legal for a model without nonlinear
// characteristics.
func parseSigma(s string, k2 int) (*mat.Dense, error) {
	if strings.TrimSpace(s) == "" {
		if k2 > 0 {
			return nil, fmt.Errorf("model has %d nonlinear characteristics; provide -sigma", k2)
		}
		return nil, nil
	}
	if k2 == 0 {
		return nil, fmt.Errorf("model has no nonlinear characteristics; omit -sigma")
	}

	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sigma entry %q: %w", part, err)
		}
		values[i] = v
	}

	switch len(values) {
	case k2:
		sigma := mat.NewDense(k2, k2, nil)
		for i, v := range values {
			sigma.Set(i, i, v)
		}
		return sigma, nil
	case k2 * k2:
		return mat.NewDense(k2, k2, values), nil
	default:
		return nil, fmt.Errorf("-sigma has %d entries, model needs %d (diagonal) or %d (full matrix)", len(values), k2, k2*k2)
	}
}

// solveOptions maps the configuration onto solver options.
func solveOptions(cfg config.EstimationConfig) demand.SolveOptions {
	return demand.SolveOptions{
		Contraction: demand.ContractionOptions{
			MaxIterations: cfg.MaxIterations,
			Tolerance:     cfg.Tolerance,
			Damping:       cfg.Damping,
			MinShare:      cfg.MinShare,
		},
		MaxConcurrency: cfg.MaxConcurrency,
	}
}
