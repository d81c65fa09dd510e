// Package exporter writes estimation output to CSV reports.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility. Relative paths resolve
// into the configured reports directory.
//
// ResultsExporter: Turns a solved estimation run into a product-level report
// (market, observed and predicted shares, mean utility, structural residual)
// and a run summary (objective, coefficient estimates, solver diagnostics).
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(cfg.Paths.ReportsDir)
//	results := exporter.NewResultsExporter(writer, logger)
//	if err := results.Export(ctx, data, res, "demand"); err != nil {
//	    return err
//	}
package exporter
