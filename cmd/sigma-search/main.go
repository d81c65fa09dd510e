package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

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
	configFile := flag.String("config", "", "config file (defaults to the config.yaml lookup)")
	method := flag.String("method", "grid", "search method: grid or neldermead")
	minFlag := flag.String("min", "", "comma-separated lower bounds for the sigma diagonal (grid)")
	maxFlag := flag.String("max", "", "comma-separated upper bounds for the sigma diagonal (grid)")
	steps := flag.Int("steps", 5, "grid points per dimension")
	startFlag := flag.String("start", "", "comma-separated starting diagonal (neldermead, defaults to ones)")
	searchIters := flag.Int("search-iters", 200, "Nelder-Mead iteration budget (0 = no limit)")
	workers := flag.Int("workers", 0, "concurrent grid candidates (defaults to estimation.max_concurrency)")
	outPrefix := flag.String("out", "", "write reports for the best candidate under this prefix")
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
	start := time.Now()
	logger.InfoContext(ctx, "Sigma search starting", "version", version.Version)

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

	data, err := loadTable(*dataPath, *sheet, form)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load product table", "error", err)
		os.Exit(1)
	}

	k2 := data.NonlinearDim()
	if k2 == 0 {
		logger.ErrorContext(ctx, "Model has no nonlinear characteristics, nothing to search",
			"hint", "name columns with -nonlinear")
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Loaded product table",
		"products", data.NumProducts(),
		"markets", data.NumMarkets(),
		"nonlinear_dim", k2,
	)

	draws, err := demand.NewStandardNormalDraws(cfg.Draws.Count, k2, cfg.Draws.Seed)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build simulation draws", "error", err)
		os.Exit(1)
	}

	problem, err := demand.NewProblem(data, draws, solveOptions(cfg.Estimation), logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to assemble estimation problem", "error", err)
		os.Exit(1)
	}

	poolSize := *workers
	if poolSize <= 0 {
		poolSize = cfg.Estimation.MaxConcurrency
	}

	var best *searchCandidate
	switch strings.ToLower(*method) {
	case "grid":
		lower, err := parseDiagonal(*minFlag, k2, "-min")
		if err != nil {
			logger.ErrorContext(ctx, "Invalid grid bounds", "error", err)
			os.Exit(1)
		}
		upper, err := parseDiagonal(*maxFlag, k2, "-max")
		if err != nil {
			logger.ErrorContext(ctx, "Invalid grid bounds", "error", err)
			os.Exit(1)
		}
		candidates := gridCandidates(lower, upper, *steps)
		logger.InfoContext(ctx, "Starting grid search",
			"candidates", len(candidates),
			"steps", *steps,
			"workers", poolSize,
		)
		best, err = searchGrid(ctx, problem, candidates, poolSize, logger)
		if err != nil {
			logger.ErrorContext(ctx, "Grid search failed", "error", err)
			os.Exit(1)
		}

	case "neldermead":
		initial, err := startingDiagonal(*startFlag, k2)
		if err != nil {
			logger.ErrorContext(ctx, "Invalid -start flag", "error", err)
			os.Exit(1)
		}
		logger.InfoContext(ctx, "Starting Nelder-Mead search",
			"start", initial,
			"iteration_budget", *searchIters,
		)
		best, err = searchNelderMead(ctx, problem, initial, *searchIters, logger)
		if err != nil {
			logger.ErrorContext(ctx, "Nelder-Mead search failed", "error", err)
			os.Exit(1)
		}

	default:
		logger.ErrorContext(ctx, "Unknown search method", "method", *method,
			"hint", "use -method grid or -method neldermead")
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Search completed",
		"method", strings.ToLower(*method),
		"best_sigma", best.diagonal,
		"objective", best.objective,
		"beta", best.result.Beta,
		"run_id", best.result.RunID,
		"duration", time.Since(start),
	)

	if *outPrefix != "" {
		writer := exporter.NewCSVWriter(cfg.Paths.ReportsDir)
		results := exporter.NewResultsExporter(writer, logger)
		if err := results.Export(ctx, data, best.result, *outPrefix); err != nil {
			logger.ErrorContext(ctx, "Failed to write reports", "error", err)
			os.Exit(1)
		}
		logger.InfoContext(ctx, "Best candidate exported", "reports_prefix", *outPrefix)
	}
}

// searchCandidate holds one evaluated point of the sigma search.
type searchCandidate struct {
	index     int
	diagonal  []float64
	objective float64
	result    *demand.Results
}

// searchGrid evaluates every candidate diagonal with a bounded worker pool and
// returns the one with the lowest GMM objective. Ties go to the earlier
// candidate, so the outcome does not depend on goroutine scheduling.
func searchGrid(ctx context.Context, problem *demand.Problem, candidates [][]float64, maxConcurrency int, logger *slog.Logger) (*searchCandidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty search grid")
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	resultsChan := make(chan *searchCandidate, maxConcurrency)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrency)

	for i, diag := range candidates {
		wg.Add(1)
		go func(idx int, diagonal []float64) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			cand := &searchCandidate{index: idx, diagonal: diagonal, objective: math.Inf(1)}
			res, err := problem.Solve(ctx, diagonalSigma(diagonal))
			if err != nil {
				logger.DebugContext(ctx, "candidate solve failed",
					"index", idx,
					"diagonal", diagonal,
					"error", err,
				)
			} else {
				cand.objective = res.Objective
				cand.result = res
			}
			resultsChan <- cand
		}(i, diag)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var best *searchCandidate
	evaluated := 0
	for cand := range resultsChan {
		evaluated++

		if betterCandidate(cand, best) {
			best = cand
			logger.DebugContext(ctx, "found better candidate",
				"index", cand.index,
				"diagonal", cand.diagonal,
				"objective", cand.objective,
			)
		}

		if evaluated%20 == 0 {
			logger.InfoContext(ctx, "grid search progress",
				"evaluated", evaluated,
				"total", len(candidates),
				"best_objective", best.objective,
			)
		}
	}

	if best == nil || best.result == nil {
		return nil, fmt.Errorf("no candidate produced a finite objective")
	}
	return best, nil
}

// betterCandidate orders candidates by objective, then by grid position.
func betterCandidate(cand, best *searchCandidate) bool {
	if best == nil {
		return true
	}
	if cand.objective != best.objective {
		return cand.objective < best.objective
	}
	return cand.index < best.index
}

// searchNelderMead minimizes the GMM objective as a function of the sigma
// diagonal. Candidates that fail to solve score +Inf, which the simplex
// treats as strictly worse than any finite point.
func searchNelderMead(ctx context.Context, problem *demand.Problem, start []float64, iterations int, logger *slog.Logger) (*searchCandidate, error) {
	// A starting point that cannot be solved leaves the simplex with nothing
	// to improve on, so reject it up front with the real error.
	if _, err := problem.Solve(ctx, diagonalSigma(start)); err != nil {
		return nil, fmt.Errorf("starting point does not solve: %w", err)
	}

	objective := optimize.Problem{
		Func: func(x []float64) float64 {
			res, err := problem.Solve(ctx, diagonalSigma(x))
			if err != nil {
				logger.DebugContext(ctx, "objective evaluation failed",
					"diagonal", x,
					"error", err,
				)
				return math.Inf(1)
			}
			return res.Objective
		},
	}

	settings := &optimize.Settings{MajorIterations: iterations}
	solution, err := optimize.Minimize(objective, start, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("nelder-mead: %w", err)
	}

	logger.InfoContext(ctx, "nelder-mead finished",
		"status", solution.Status.String(),
		"func_evaluations", solution.Stats.FuncEvaluations,
		"objective", solution.F,
	)

	// Solve once more at the optimum so the caller gets the full results.
	res, err := problem.Solve(ctx, diagonalSigma(solution.X))
	if err != nil {
		return nil, fmt.Errorf("re-solving at optimum: %w", err)
	}

	return &searchCandidate{
		diagonal:  solution.X,
		objective: res.Objective,
		result:    res,
	}, nil
}

// gridCandidates builds the cartesian product of per-dimension linspaces,
// last dimension varying fastest.
func gridCandidates(lower, upper []float64, steps int) [][]float64 {
	axes := make([][]float64, len(lower))
	for d := range lower {
		axes[d] = linspace(lower[d], upper[d], steps)
	}

	var out [][]float64
	current := make([]float64, len(axes))
	var walk func(d int)
	walk = func(d int) {
		if d == len(axes) {
			out = append(out, append([]float64(nil), current...))
			return
		}
		for _, v := range axes[d] {
			current[d] = v
			walk(d + 1)
		}
	}
	walk(0)
	return out
}

func linspace(start, stop float64, num int) []float64 {
	if num <= 0 {
		return nil
	}
	if num == 1 {
		return []float64{start}
	}

	result := make([]float64, num)
	step := (stop - start) / float64(num-1)
	for i := 0; i < num; i++ {
		result[i] = start + float64(i)*step
	}
	return result
}

// diagonalSigma lifts a diagonal into the square matrix the solver expects.
func diagonalSigma(diagonal []float64) *mat.Dense {
	k2 := len(diagonal)
	sigma := mat.NewDense(k2, k2, nil)
	for i, v := range diagonal {
		sigma.Set(i, i, v)
	}
	return sigma
}

// parseDiagonal parses a comma-separated list of k2 floats.
func parseDiagonal(s string, k2 int, name string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%s is required", name)
	}

	parts := strings.Split(s, ",")
	if len(parts) != k2 {
		return nil, fmt.Errorf("%s has %d entries, model needs %d", name, len(parts), k2)
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", name, part, err)
		}
		values[i] = v
	}
	return values, nil
}

// startingDiagonal defaults to ones when no -start flag is given.
func startingDiagonal(s string, k2 int) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		start := make([]float64, k2)
		for i := range start {
			start[i] = 1.0
		}
		return start, nil
	}
	return parseDiagonal(s, k2, "-start")
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
