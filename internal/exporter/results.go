package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"blpcli/internal/demand"
)

// ResultsExporter turns a solved estimation run into CSV reports.
type ResultsExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewResultsExporter creates a results exporter writing through csvWriter.
func NewResultsExporter(csvWriter *CSVWriter, logger *slog.Logger) *ResultsExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsExporter{csvWriter: csvWriter, logger: logger}
}

// Export writes the full report set for one run: <prefix>_products.csv,
// <prefix>_markets.csv, and <prefix>_summary.csv.
func (e *ResultsExporter) Export(ctx context.Context, data *demand.ProductData, res *demand.Results, prefix string) error {
	if err := e.ExportProducts(ctx, data, res, fmt.Sprintf("%s_products.csv", prefix)); err != nil {
		return err
	}
	if err := e.ExportMarkets(ctx, data, fmt.Sprintf("%s_markets.csv", prefix)); err != nil {
		return err
	}
	return e.ExportSummary(ctx, res, fmt.Sprintf("%s_summary.csv", prefix))
}

// ExportProducts writes one row per product: its market, observed and
// predicted shares, solved mean utility, and structural residual.
func (e *ResultsExporter) ExportProducts(ctx context.Context, data *demand.ProductData, res *demand.Results, filePath string) error {
	n := data.NumProducts()
	if len(res.Delta) != n || len(res.Xi) != n || len(res.PredictedShares) != n {
		return fmt.Errorf("results carry %d/%d/%d values for %d products",
			len(res.Delta), len(res.Xi), len(res.PredictedShares), n)
	}

	stream, err := e.csvWriter.CreateStreamWriter(filePath,
		[]string{"market", "share", "predicted_share", "delta", "xi"})
	if err != nil {
		return fmt.Errorf("create product report: %w", err)
	}

	ids := data.MarketIDs()
	shares := data.Shares()
	for i := 0; i < n; i++ {
		record := []string{
			ids[i],
			formatFloat(shares[i]),
			formatFloat(res.PredictedShares[i]),
			formatFloat(res.Delta[i]),
			formatFloat(res.Xi[i]),
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return fmt.Errorf("write product row %d: %w", i, err)
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close product report: %w", err)
	}

	e.logger.InfoContext(ctx, "product report written",
		"path", filePath,
		"products", n,
	)
	return nil
}

// ExportMarkets writes one row per market segment with its product count and
// outside-option share.
func (e *ResultsExporter) ExportMarkets(ctx context.Context, data *demand.ProductData, filePath string) error {
	records := make([][]string, 0, data.NumMarkets())
	for _, seg := range data.Segments() {
		records = append(records, []string{
			seg.MarketID,
			formatInt(seg.Size()),
			formatFloat(seg.OutsideShare),
		})
	}

	headers := []string{"market", "products", "outside_share"}
	if err := e.csvWriter.WriteSimpleCSV(filePath, headers, records); err != nil {
		return fmt.Errorf("write market report: %w", err)
	}

	e.logger.InfoContext(ctx, "market report written",
		"path", filePath,
		"markets", len(records),
	)
	return nil
}

// ExportSummary writes a single-row report with the run identity, objective,
// solver diagnostics, and the linear coefficient estimates.
func (e *ResultsExporter) ExportSummary(ctx context.Context, res *demand.Results, filePath string) error {
	headers := []string{"run_id", "objective", "iterations", "max_gap", "elapsed_ms"}
	record := []string{
		res.RunID,
		formatFloat(res.Objective),
		formatInt(res.Contraction.Iterations),
		formatFloat(res.Contraction.MaxGap),
		formatInt(int(res.Elapsed.Milliseconds())),
	}
	for i, b := range res.Beta {
		headers = append(headers, fmt.Sprintf("beta_%d", i))
		record = append(record, formatFloat(b))
	}

	if err := e.csvWriter.WriteSimpleCSV(filePath, headers, [][]string{record}); err != nil {
		return fmt.Errorf("write summary report: %w", err)
	}

	e.logger.InfoContext(ctx, "summary report written",
		"path", filePath,
		"run_id", res.RunID,
		"objective", res.Objective,
	)
	return nil
}
