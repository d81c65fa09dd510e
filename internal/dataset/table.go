package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"blpcli/internal/demand"
	apperrors "blpcli/internal/errors"
)

// assembleTable turns a header row plus data rows into a validated product
// table. Data rows are numbered from 2 in error messages, matching their
// position in the source file; fully blank rows are skipped.
func assembleTable(header []string, rows [][]string, f Formulation) (*demand.ProductData, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	marketIdx, err := columnIndex(header, f.Market)
	if err != nil {
		return nil, err
	}
	shareIdx, err := columnIndex(header, f.Share)
	if err != nil {
		return nil, err
	}
	linearIdx, err := columnIndices(header, f.Linear)
	if err != nil {
		return nil, err
	}
	nonlinearIdx, err := columnIndices(header, f.Nonlinear)
	if err != nil {
		return nil, err
	}
	instrumentIdx, err := columnIndices(header, f.Instruments)
	if err != nil {
		return nil, err
	}

	type numberedRow struct {
		line  int
		cells []string
	}
	var data []numberedRow
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		data = append(data, numberedRow{line: i + 2, cells: row})
	}
	if len(data) == 0 {
		return nil, apperrors.NewDataError("dataset contains no data rows", nil)
	}

	n := len(data)
	marketIDs := make([]string, n)
	shares := make([]float64, n)
	linear := make([]float64, 0, n*len(linearIdx))
	nonlinear := make([]float64, 0, n*len(nonlinearIdx))
	instruments := make([]float64, 0, n*len(instrumentIdx))

	for r, row := range data {
		market := cellValue(row.cells, marketIdx)
		if market == "" {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("missing value for column %q on line %d", f.Market, row.line), nil).
				WithContext("line", row.line).
				WithContext("column", f.Market)
		}
		marketIDs[r] = market

		share, err := parseCell(row.cells, shareIdx, row.line, f.Share)
		if err != nil {
			return nil, err
		}
		shares[r] = share

		for i, idx := range linearIdx {
			v, err := parseCell(row.cells, idx, row.line, f.Linear[i])
			if err != nil {
				return nil, err
			}
			linear = append(linear, v)
		}
		for i, idx := range nonlinearIdx {
			v, err := parseCell(row.cells, idx, row.line, f.Nonlinear[i])
			if err != nil {
				return nil, err
			}
			nonlinear = append(nonlinear, v)
		}
		for i, idx := range instrumentIdx {
			v, err := parseCell(row.cells, idx, row.line, f.Instruments[i])
			if err != nil {
				return nil, err
			}
			instruments = append(instruments, v)
		}
	}

	cfg := demand.ProductDataConfig{
		MarketIDs: marketIDs,
		Shares:    shares,
		Linear:    mat.NewDense(n, len(linearIdx), linear),
	}
	if len(nonlinearIdx) > 0 {
		cfg.Nonlinear = mat.NewDense(n, len(nonlinearIdx), nonlinear)
	}
	if len(instrumentIdx) > 0 {
		cfg.Instruments = mat.NewDense(n, len(instrumentIdx), instruments)
	}
	return demand.NewProductData(cfg)
}

// columnIndex resolves a named column against the header, ignoring case and
// surrounding whitespace.
func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return 0, apperrors.NewNotFoundError(fmt.Sprintf("column %q", name))
}

func columnIndices(header []string, names []string) ([]int, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}
	return indices, nil
}

// cellValue returns a trimmed cell, tolerating rows the reader truncated at
// the last non-empty cell.
func cellValue(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseCell(row []string, idx, line int, column string) (float64, error) {
	raw := cellValue(row, idx)
	if raw == "" {
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("missing value for column %q on line %d", column, line), nil).
			WithContext("line", line).
			WithContext("column", column)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("invalid number %q for column %q on line %d", raw, column, line), err).
			WithContext("line", line).
			WithContext("column", column)
	}
	return v, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
